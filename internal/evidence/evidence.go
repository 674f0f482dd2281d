// Package evidence extracts task identifiers and test outcomes from agent
// transcripts, and review findings from reviewer output.
//
// Test-runner output is matched against an ordered list of pure grammar
// matchers; the first grammar that recognizes the output wins. Output that
// matches no grammar is a first-class "no evidence" result, not an error.
package evidence

import (
	"regexp"
)

// TestResult is the evidence extracted from one transcript.
type TestResult struct {
	// Passed is the verdict of the matching grammar.
	Passed bool

	// Summary is the matched line, kept verbatim as evidence.
	Summary string

	// Grammar names the matcher that produced the result.
	Grammar string
}

// grammar recognizes one test runner's output. pass and fail are tried in
// that order; a fail match beats a pass match within the same grammar so a
// mixed transcript ("ok pkg/a" then "FAIL pkg/b") reads as failed.
type grammar struct {
	name string
	pass *regexp.Regexp
	fail *regexp.Regexp
}

// grammars is the ordered matcher list. Order is deliberate: specific
// runners before the generic fallback.
var grammars = []grammar{
	{
		name: "gotest",
		pass: regexp.MustCompile(`(?m)^ok\s+\S+\s+(?:[\d.]+s|\(cached\))`),
		fail: regexp.MustCompile(`(?m)^(?:FAIL|--- FAIL:)`),
	},
	{
		name: "pytest",
		pass: regexp.MustCompile(`(?m)=+\s*\d+ passed[^=\n]*=+`),
		fail: regexp.MustCompile(`(?m)=+[^=\n]*\d+ (?:failed|error)[^=\n]*=+`),
	},
	{
		name: "jest",
		pass: regexp.MustCompile(`(?m)^Tests:\s+\d+ passed, \d+ total`),
		fail: regexp.MustCompile(`(?m)^Tests:\s+.*\d+ failed`),
	},
	{
		name: "cargo",
		pass: regexp.MustCompile(`(?m)^test result: ok\.\s+\d+ passed`),
		fail: regexp.MustCompile(`(?m)^test result: FAILED\.`),
	},
	{
		name: "generic",
		pass: regexp.MustCompile(`(?im)^all tests pass(?:ed)?\.?$`),
		fail: regexp.MustCompile(`(?im)^(?:some )?tests? failed\.?$`),
	},
}

// ExtractTestResult runs the transcript through the grammar list. The
// second return is false when no grammar recognized the output.
func ExtractTestResult(output string) (TestResult, bool) {
	for _, g := range grammars {
		if loc := g.fail.FindString(output); loc != "" {
			return TestResult{Passed: false, Summary: loc, Grammar: g.name}, true
		}
		if loc := g.pass.FindString(output); loc != "" {
			return TestResult{Passed: true, Summary: loc, Grammar: g.name}, true
		}
	}
	return TestResult{}, false
}

// taskIDPatterns locate the task a transcript belongs to. Explicit labels
// are tried before the bare id form.
var taskIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^task(?:[ _-]?id)?\s*[:=]\s*([A-Za-z][A-Za-z0-9_-]*\d+)`),
	regexp.MustCompile(`(?i)\btask\s+(T\d+)\b`),
	regexp.MustCompile(`\b(T\d+)\b`),
}

// ExtractTaskID finds the task identifier in a transcript. The second
// return is false when no pattern matched.
func ExtractTaskID(output string) (string, bool) {
	for _, re := range taskIDPatterns {
		if m := re.FindStringSubmatch(output); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// newTestsPattern recognizes the implementer's declaration that new tests
// were written for the task.
var newTestsPattern = regexp.MustCompile(`(?im)^new tests?\s*[:=]\s*(?:written|added|yes|true)\b`)

// NewTestsWritten reports whether the transcript declares new tests.
func NewTestsWritten(output string) bool {
	return newTestsPattern.MatchString(output)
}
