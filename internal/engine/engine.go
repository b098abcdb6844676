package engine

import (
	"context"
	"fmt"
	"strings"
)

// Prompt is the input handed to the decision engine for one cycle. System
// carries the standing instructions, User the per-cycle market context.
type Prompt struct {
	System string
	User   string
}

// Engine produces one round of raw decision text. Implementations must
// honor ctx cancellation; the returned string is untrusted and goes through
// snapshot extraction unmodified.
type Engine interface {
	Name() string
	Invoke(ctx context.Context, p Prompt) (string, error)
}

// InvokeError reports a failed engine run with enough context to debug it:
// how the process or request ended and an excerpt of what it said on the way
// down.
type InvokeError struct {
	Engine   string
	ExitCode int // -1 when no exit code applies
	Stderr   string
	Err      error
}

func (e *InvokeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "engine %s invoke failed", e.Engine)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, "; stderr: %s", e.Stderr)
	}
	return b.String()
}

func (e *InvokeError) Unwrap() error { return e.Err }

// stderrExcerptLimit caps how much captured stderr travels inside an error.
const stderrExcerptLimit = 2048

func stderrExcerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > stderrExcerptLimit {
		s = s[:stderrExcerptLimit] + "..."
	}
	return s
}
