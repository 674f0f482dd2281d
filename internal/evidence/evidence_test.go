package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTestResult(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		found   bool
		passed  bool
		grammar string
	}{
		{
			name:    "go test pass",
			output:  "ok  \tgithub.com/acme/pkg\t0.123s\n",
			found:   true,
			passed:  true,
			grammar: "gotest",
		},
		{
			name:    "go test cached pass",
			output:  "ok  \tgithub.com/acme/pkg\t(cached)\n",
			found:   true,
			passed:  true,
			grammar: "gotest",
		},
		{
			name:    "go test failure",
			output:  "--- FAIL: TestThing (0.00s)\nFAIL\n",
			found:   true,
			passed:  false,
			grammar: "gotest",
		},
		{
			name:    "mixed go output reads as failed",
			output:  "ok  \tpkg/a\t0.1s\nFAIL\tpkg/b\t0.2s\n",
			found:   true,
			passed:  false,
			grammar: "gotest",
		},
		{
			name:    "pytest pass",
			output:  "========= 12 passed in 0.34s =========\n",
			found:   true,
			passed:  true,
			grammar: "pytest",
		},
		{
			name:    "pytest failure",
			output:  "===== 1 failed, 11 passed in 0.40s =====\n",
			found:   true,
			passed:  false,
			grammar: "pytest",
		},
		{
			name:    "jest pass",
			output:  "Tests:       8 passed, 8 total\n",
			found:   true,
			passed:  true,
			grammar: "jest",
		},
		{
			name:    "jest failure",
			output:  "Tests:       1 failed, 7 passed, 8 total\n",
			found:   true,
			passed:  false,
			grammar: "jest",
		},
		{
			name:    "cargo pass",
			output:  "test result: ok. 5 passed; 0 failed; 0 ignored\n",
			found:   true,
			passed:  true,
			grammar: "cargo",
		},
		{
			name:    "cargo failure",
			output:  "test result: FAILED. 4 passed; 1 failed\n",
			found:   true,
			passed:  false,
			grammar: "cargo",
		},
		{
			name:    "generic pass",
			output:  "All tests passed.\n",
			found:   true,
			passed:  true,
			grammar: "generic",
		},
		{
			name:   "no evidence",
			output: "I refactored the parser and everything looks fine.\n",
			found:  false,
		},
		{
			name:   "empty transcript",
			output: "",
			found:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ExtractTestResult(tt.output)
			require.Equal(t, tt.found, ok)
			if !tt.found {
				return
			}
			assert.Equal(t, tt.passed, result.Passed)
			assert.Equal(t, tt.grammar, result.Grammar)
			assert.NotEmpty(t, result.Summary)
		})
	}
}

func TestExtractTaskID(t *testing.T) {
	tests := []struct {
		name   string
		output string
		id     string
		found  bool
	}{
		{name: "labeled", output: "task_id: T7\nok pkg 0.1s\n", id: "T7", found: true},
		{name: "labeled with equals", output: "Task = T12\n", id: "T12", found: true},
		{name: "task mention", output: "Completed task T3 as requested.\n", id: "T3", found: true},
		{name: "bare id", output: "All work for T42 is done.\n", id: "T42", found: true},
		{name: "label beats bare id", output: "saw T9 earlier\ntask_id: T1\n", id: "T1", found: true},
		{name: "nothing", output: "no identifiers here\n", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ExtractTaskID(tt.output)
			require.Equal(t, tt.found, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestNewTestsWritten(t *testing.T) {
	assert.True(t, NewTestsWritten("New tests: written\n"))
	assert.True(t, NewTestsWritten("new test: added for the edge case\n"))
	assert.True(t, NewTestsWritten("NEW TESTS = yes\n"))
	assert.False(t, NewTestsWritten("no new tests were needed\n"))
	assert.False(t, NewTestsWritten(""))
}
