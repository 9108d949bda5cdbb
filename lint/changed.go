// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package lint

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// LineRange is an inclusive range of line numbers.
type LineRange struct{ Start, End int }

// Lines holds the added line ranges of one file.
type Lines []LineRange

// Contains reports whether line n is in one of the ranges.
func (l Lines) Contains(n int) bool {
	for _, r := range l {
		if n >= r.Start && n <= r.End {
			return true
		}
	}
	return false
}

// ChangedLines parses a unified diff, preferably produced with zero context
// lines, and returns the added line ranges keyed by the new file path.
// Deleted files are omitted.
func ChangedLines(d []byte) (map[string]Lines, error) {
	if len(bytes.TrimSpace(d)) == 0 {
		return map[string]Lines{}, nil
	}
	fds, err := diff.ParseMultiFileDiff(d)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	changed := make(map[string]Lines, len(fds))
	for _, fd := range fds {
		if fd.NewName == "/dev/null" {
			continue
		}
		name := strings.TrimPrefix(fd.NewName, "b/")
		for _, h := range fd.Hunks {
			if h.NewLines == 0 {
				continue
			}
			start := int(h.NewStartLine)
			changed[name] = append(changed[name], LineRange{Start: start, End: start + int(h.NewLines) - 1})
		}
	}
	return changed, nil
}

// diagnostic matches "path:line:" and "path:line:col:" prefixes as emitted
// by flake8, ruff, pylint --output-format=parseable and most compilers.
var diagnostic = regexp.MustCompile(`^(.+?):(\d+):`)

// FilterOutput removes diagnostics of linter output that point outside the
// changed lines. Lines that are not diagnostics are kept.
//
// The returned bool reports whether anything besides blank lines remains.
func FilterOutput(out []byte, root string, changed map[string]Lines) ([]byte, bool) {
	var (
		buf         bytes.Buffer
		significant bool
	)
	for line := range strings.Lines(string(out)) {
		if m := diagnostic.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[2])
			if err == nil && !changed[cleanPath(m[1], root)].Contains(n) {
				continue
			}
		}
		if strings.TrimSpace(line) != "" {
			significant = true
		}
		buf.WriteString(line)
	}
	return buf.Bytes(), significant
}
