package version

import (
	"fmt"
	"strings"
)

// Build-time injected information, set with -ldflags "-X".
var (
	Version    string
	CommitHash string
	BuildTime  string
	Prerelease string
	Snapshot   string
	OS         string
	Arch       string
	Branch     string
)

const (
	devVersion     = "dev"
	snapshotSuffix = "snapshot"
)

type buildInfo struct {
	version    string
	commit     string
	prerelease string
	snapshot   bool
	os         string
	arch       string
	branch     string
}

// GetVersion returns the version in the form used by `rget version` and the
// User-Agent header, e.g. "1.2.0(abc123)-rc1[feature]/linux-amd64".
func GetVersion() string {
	return buildInfo{
		version:    Version,
		commit:     CommitHash,
		prerelease: Prerelease,
		snapshot:   Snapshot == "true",
		os:         OS,
		arch:       Arch,
		branch:     Branch,
	}.String()
}

func (b buildInfo) String() string {
	if b.version == "" {
		b.version = devVersion
	}
	var sb strings.Builder
	sb.WriteString(b.version)
	if b.commit != "" {
		fmt.Fprintf(&sb, "(%s)", b.commit)
	}

	switch {
	case b.prerelease != "":
		fmt.Fprintf(&sb, "-%s", b.prerelease)
	case b.snapshot:
		fmt.Fprintf(&sb, "-%s", snapshotSuffix)
	}

	if b.branch != "" && b.branch != "main" && b.branch != "HEAD" {
		fmt.Fprintf(&sb, "[%s]", b.branch)
	}

	switch {
	case b.os != "" && b.arch != "":
		fmt.Fprintf(&sb, "/%s-%s", b.os, b.arch)
	case b.os != "":
		fmt.Fprintf(&sb, "/%s", b.os)
	}
	return sb.String()
}
