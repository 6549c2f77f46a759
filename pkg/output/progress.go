package output

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progressTarget advances a progress bar for every byte that reaches the
// wrapped target.
type progressTarget struct {
	Target
	bar *progressbar.ProgressBar
}

// WithProgress wraps t so that writes are reported on a byte progress bar
// rendered to w.
func WithProgress(t Target, total int64, description string, w io.Writer) Target {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &progressTarget{Target: t, bar: bar}
}

func (p *progressTarget) Write(b []byte) (int, error) {
	n, err := p.Target.Write(b)
	_ = p.bar.Add(n)
	return n, err
}

func (p *progressTarget) WriteAt(b []byte, off int64) (int, error) {
	n, err := p.Target.WriteAt(b, off)
	_ = p.bar.Add(n)
	return n, err
}

func (p *progressTarget) Close() error {
	_ = p.bar.Finish()
	return p.Target.Close()
}
