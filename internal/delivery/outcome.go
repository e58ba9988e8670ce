// Package delivery drives one outbound message per contact and decides, from
// what the transport shows, whether it went out.
package delivery

import (
	"context"
)

// Outcome is the result of one send attempt.
type Outcome int

const (
	// Sent means the message was submitted.
	Sent Outcome = iota + 1
	// InvalidNumber means the transport rejected the phone. Never retried.
	InvalidNumber
	// SessionLost means the login session dropped. Only seen inside the
	// driver; callers get the outcome of the retried attempt instead.
	SessionLost
	// SkippedUnknownFailure covers everything else. The contact stays
	// pending for a later run.
	SkippedUnknownFailure
)

func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case InvalidNumber:
		return "invalid_number"
	case SessionLost:
		return "session_lost"
	case SkippedUnknownFailure:
		return "skipped"
	default:
		return "unknown"
	}
}

// Sender is the capability the campaign needs from a transport. The error is
// non-nil only when ctx ended; the outcome is still meaningful then (a
// message submitted right before an interrupt is reported as Sent).
type Sender interface {
	AttemptSend(ctx context.Context, phone, message string) (Outcome, error)
}
