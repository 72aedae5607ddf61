package association

import (
	"fmt"

	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/changeevent"
)

// TargetKind names the kind of resource an attempt was made against.
type TargetKind string

const (
	KindLoadBalancer TargetKind = "load-balancer"
	KindAPIStage     TargetKind = "api-stage"
)

// Outcome of a single association attempt.
type Outcome string

const (
	OutcomeAssociated Outcome = "associated"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
)

// BestEffortError is a failure the handler tolerates: it is reported and
// logged but never fails the invocation.
type BestEffortError struct {
	Target string
	Op     string
	Err    error
}

func (e *BestEffortError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *BestEffortError) Unwrap() error { return e.Err }

// Attempt records what happened to one target.
type Attempt struct {
	Target  string     `json:"target"`
	Kind    TargetKind `json:"kind"`
	Outcome Outcome    `json:"outcome"`
	Error   string     `json:"error,omitempty"`

	Err error `json:"-"`
}

// Report is the structured result of one invocation, returned to the
// invoker as the Lambda response.
type Report struct {
	Origin   changeevent.Origin `json:"origin"`
	Attempts []Attempt          `json:"attempts"`
}

func (r *Report) add(a Attempt) {
	r.Attempts = append(r.Attempts, a)
}

// Failures returns the attempts that did not succeed.
func (r Report) Failures() []Attempt {
	var failed []Attempt
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeFailed {
			failed = append(failed, a)
		}
	}
	return failed
}

// Associated returns the targets the Web ACL was attached to.
func (r Report) Associated() []string {
	var targets []string
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeAssociated {
			targets = append(targets, a.Target)
		}
	}
	return targets
}
