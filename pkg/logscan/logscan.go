// Package logscan detects application crashes in device logs.
package logscan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Signature is the crash pattern: a line matches when it contains both
// markers.
type Signature struct {
	PackageMarker string
	RuntimeMarker string
}

// Valid reports whether both markers are set. An empty marker would match
// every line.
func (s Signature) Valid() bool {
	return s.PackageMarker != "" && s.RuntimeMarker != ""
}

// Matches reports whether a single line carries the signature.
func (s Signature) Matches(line string) bool {
	if !s.Valid() {
		return false
	}
	return strings.Contains(line, s.PackageMarker) && strings.Contains(line, s.RuntimeMarker)
}

// Match is the first matching line of a scan.
type Match struct {
	Line   string
	Number int // 1-based
}

// Scan reads r line by line and returns the first match. Lines have no
// length limit.
func Scan(r io.Reader, sig Signature) (Match, bool, error) {
	reader := bufio.NewReader(r)

	n := 0
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			n++
			line = strings.TrimRight(line, "\r\n")
			if sig.Matches(line) {
				return Match{Line: line, Number: n}, true, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return Match{}, false, nil
		}
		if err != nil {
			return Match{}, false, fmt.Errorf("scan logs: %w", err)
		}
	}
}

// ScanFile scans a pulled log file.
func ScanFile(path string, sig Signature) (Match, bool, error) {
	f, err := os.Open(path) //#nosec G304 -- path is inside the run's output tree
	if err != nil {
		return Match{}, false, err
	}
	defer f.Close()
	return Scan(f, sig)
}
