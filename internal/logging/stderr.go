package logging

import (
	"io"
	"os"
)

// stderr is indirected so tests can capture output.
var stderrOverride io.Writer

func stderr() io.Writer {
	if stderrOverride != nil {
		return stderrOverride
	}
	return os.Stderr
}
