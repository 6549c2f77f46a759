package multifile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/replicate/rget/pkg/download"
)

// A manifest lists the downloads of one multifile run. The text form is a
// file of URL and destination pairs:
//
// http://example.com/foo/bar.txt     foo/bar.txt
// http://example.com/foo/bar/baz.txt foo/bar/baz.txt
//
// A text manifest may contain blank lines. The pairs are separated by
// arbitrary whitespace.
//
// Files ending in .yaml or .yml hold a list of entries instead, each of which
// may also pick its own mode:
//
//   - url: http://example.com/foo/bar.txt
//     dest: foo/bar.txt
//     mode: parallel
type manifest []manifestEntry

type manifestEntry struct {
	URL  string `yaml:"url"`
	Dest string `yaml:"dest"`
	// Mode overrides --parallel for this entry when set.
	Mode string `yaml:"mode,omitempty"`
}

func manifestFile(manifestPath string) (*os.File, error) {
	if manifestPath == "-" {
		return os.Stdin, nil
	}
	if _, err := os.Stat(manifestPath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("manifest file %s does not exist", manifestPath)
	}
	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("error opening manifest file %s: %w", manifestPath, err)
	}
	return file, nil
}

func isYAMLManifest(manifestPath string) bool {
	switch strings.ToLower(filepath.Ext(manifestPath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func parseManifest(r io.Reader, yamlFormat bool) (manifest, error) {
	if yamlFormat {
		return parseYAMLManifest(r)
	}
	return parseTextManifest(r)
}

func parseLine(line string) (urlString, dest string, err error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("error parsing manifest invalid line format `%s`", line)
	}
	return fields[0], fields[1], nil
}

func parseTextManifest(r io.Reader) (manifest, error) {
	entries := make(manifest, 0)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urlString, dest, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, manifestEntry{URL: urlString, Dest: dest})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return entries, nil
}

func parseYAMLManifest(r io.Reader) (manifest, error) {
	entries := make(manifest, 0)
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing yaml manifest: %w", err)
	}
	for i, entry := range entries {
		if entry.URL == "" || entry.Dest == "" {
			return nil, fmt.Errorf("error parsing yaml manifest: entry %d needs both url and dest", i)
		}
	}
	return entries, nil
}

func checkSeenDestinations(destinations map[string]string, dest string, urlString string) error {
	if seenURL, ok := destinations[dest]; ok {
		if seenURL != urlString {
			return fmt.Errorf("duplicate destination %s with different urls: %s and %s", dest, seenURL, urlString)
		}
		return fmt.Errorf("duplicate entry: %s %s", urlString, dest)
	}
	return nil
}

// validate rejects unknown modes and, when destinations matter, two entries
// writing the same path.
func (m manifest) validate(checkDestinations bool) error {
	seenDestinations := make(map[string]string)
	for _, entry := range m {
		if _, err := download.ParseMode(entry.Mode); err != nil {
			return err
		}
		if !checkDestinations {
			continue
		}
		dest := filepath.Clean(entry.Dest)
		if err := checkSeenDestinations(seenDestinations, dest, entry.URL); err != nil {
			return err
		}
		seenDestinations[dest] = entry.URL
	}
	return nil
}
