package requests

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/client"
)

var (
	ErrSubmitInFlight    = errors.New("a submission is already in progress")
	ErrNotLoaded         = errors.New("request not loaded")
	ErrAdminOnly         = errors.New("admin session required")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// User-facing notification text.
const (
	MsgLoadFailed       = "Failed to load support requests. Please try again."
	MsgEmptyState       = "You haven't submitted any support requests yet."
	MsgEmptyStateAction = "Create Your First Request"
	MsgValidation       = "Please fill in all required fields."
	MsgSubmissionError  = "Submission Error"
	MsgRequestSubmitted = "Support request submitted"
	MsgCommentAdded     = "Comment added successfully"
	MsgStatusUpdated    = "Status updated"
	MsgUpdateFailed     = "Update Failed"
)

// ValidationError lists the fields that failed client-side checks.
// It is returned before any network call is made.
type ValidationError struct {
	Fields []string
	Reason error
}

func (e *ValidationError) Error() string {
	msg := "validation failed"
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Reason != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Reason)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// Invalidator is implemented by sessions that can be cleared after the
// backend rejects their token.
type Invalidator interface {
	Invalidate() error
}

// checkAuth clears the session when err means the backend no longer accepts it.
func checkAuth(sess Invalidator, err error) {
	if sess == nil || !errors.Is(err, client.ErrUnauthenticated) {
		return
	}
	if ierr := sess.Invalidate(); ierr != nil {
		log.Warn().Err(ierr).Msg("failed to clear rejected session")
	}
}
