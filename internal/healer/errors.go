// internal/healer/errors.go
package healer

import (
	"fmt"
	"strings"

	"github.com/sk3lla/mend/api/schemas"
)

// TriedStrategy records one strategy the picker rejected and why.
type TriedStrategy struct {
	Strategy schemas.Strategy
	Reason   string
}

// ResolutionError is the terminal failure of one resolve call. It carries
// everything needed to debug the failure: how many candidates the model saw
// and every strategy that was probed and rejected.
type ResolutionError struct {
	Action             schemas.ActionKind
	Description        string
	CandidatesAnalyzed int
	Tried              []TriedStrategy
	Cause              error
}

func (e *ResolutionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "failed to resolve %q for action %q (%d candidates analyzed",
		e.Description, e.Action, e.CandidatesAnalyzed)
	fmt.Fprintf(&sb, ", %d strategies tried)", len(e.Tried))
	for _, t := range e.Tried {
		fmt.Fprintf(&sb, "\n  - %s: %s", t.Strategy, t.Reason)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, "\ncause: %v", e.Cause)
	}
	return sb.String()
}

func (e *ResolutionError) Unwrap() error { return e.Cause }
