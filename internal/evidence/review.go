package evidence

import (
	"bufio"
	"strings"
)

const (
	criticalPrefix = "CRITICAL:"
	advisoryPrefix = "ADVISORY:"
)

// Findings is the parsed outcome of a review process's output.
type Findings struct {
	Critical []string
	Advisory []string
}

// Blocking reports whether the findings block the task's review.
func (f Findings) Blocking() bool {
	return len(f.Critical) > 0
}

// ParseFindings extracts CRITICAL:/ADVISORY:-prefixed lines from reviewer
// output. Prefixes are matched at line start after whitespace trimming;
// the prefix itself is stripped from the recorded finding.
func ParseFindings(output string) Findings {
	var f Findings
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, criticalPrefix):
			f.Critical = append(f.Critical, strings.TrimSpace(strings.TrimPrefix(line, criticalPrefix)))
		case strings.HasPrefix(line, advisoryPrefix):
			f.Advisory = append(f.Advisory, strings.TrimSpace(strings.TrimPrefix(line, advisoryPrefix)))
		}
	}
	return f
}
