package delivery

import (
	"errors"

	"github.com/soyeahso/gewebridge/internal/domain"
)

// ErrInvalidReply marks replies rejected before any work is done.
var ErrInvalidReply = errors.New("delivery: invalid reply")

// FailureKind classifies why a delivery did not complete.
type FailureKind string

const (
	FailureNone       FailureKind = "none"
	FailureInvalid    FailureKind = "invalid"
	FailureConversion FailureKind = "conversion"
	FailureIO         FailureKind = "io"
	FailureNetwork    FailureKind = "network"
)

// Result is the outcome of one Send. Segments counts voice segments that
// reached the provider.
type Result struct {
	Kind     domain.ReplyKind
	Failure  FailureKind
	Err      error
	Segments int
}

// OK reports whether the reply was fully delivered.
func (r Result) OK() bool { return r.Failure == FailureNone }

// Outcome is "sent" or "failed".
func (r Result) Outcome() string {
	if r.OK() {
		return "sent"
	}
	return "failed"
}

func ok() Result { return Result{Failure: FailureNone} }

func fail(kind FailureKind, err error) Result {
	return Result{Failure: kind, Err: err}
}
