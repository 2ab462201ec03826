package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/client"
	"github.com/wolfeidau/victimvoice/internal/config"
	"github.com/wolfeidau/victimvoice/internal/models"
)

// TransitionRule reports whether a request may move from one status to another.
type TransitionRule func(from, to models.Status) bool

// FreeTransitions allows any known status to follow any other.
func FreeTransitions(from, to models.Status) bool {
	return to.Valid()
}

var strictGraph = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusInProgress, models.StatusClosed},
	models.StatusInProgress: {models.StatusResolved, models.StatusClosed, models.StatusPending},
	models.StatusResolved:   {models.StatusClosed, models.StatusInProgress},
	models.StatusClosed:     {models.StatusInProgress},
}

// StrictTransitions only allows the moves of the request lifecycle.
// Setting the current status again is always allowed.
func StrictTransitions(from, to models.Status) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range strictGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DetailOptions configure the detail workflow.
type DetailOptions struct {
	Policy config.StatusPolicy
	Strict bool
	Clock  func() time.Time
}

// DetailView drives a single request: status changes, comments and evidence.
type DetailView struct {
	api      API
	viewer   Viewer
	notifier Notifier
	policy   config.StatusPolicy
	allowed  TransitionRule
	now      func() time.Time

	mu      sync.RWMutex
	request *models.SupportRequest
	status  models.Status
	draft   string

	submitting atomic.Bool
}

func NewDetailView(api API, viewer Viewer, notifier Notifier, opts DetailOptions) *DetailView {
	policy := opts.Policy
	if !policy.Valid() {
		policy = config.StatusRollback
	}

	allowed := TransitionRule(FreeTransitions)
	if opts.Strict {
		allowed = StrictTransitions
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &DetailView{
		api:      api,
		viewer:   viewer,
		notifier: notifier,
		policy:   policy,
		allowed:  allowed,
		now:      now,
	}
}

// Load fetches the request and resets the local status to the fetched value.
func (v *DetailView) Load(ctx context.Context, id string) error {
	req, err := v.api.GetRequest(ctx, id)
	if err != nil {
		checkAuth(v.viewer, err)
		log.Debug().Err(err).Str("id", id).Msg("request load failed")
		return fmt.Errorf("failed to load request %s: %w", id, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.request = req
	v.status = req.Status
	return nil
}

// Request returns a copy of the loaded request with the displayed status applied.
func (v *DetailView) Request() (models.SupportRequest, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.request == nil {
		return models.SupportRequest{}, false
	}
	out := *v.request
	out.Status = v.status
	out.Evidence = append([]models.Evidence(nil), v.request.Evidence...)
	out.Comments = append([]models.Comment(nil), v.request.Comments...)
	return out, true
}

// Status returns the displayed status.
func (v *DetailView) Status() models.Status {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// LastUpdate summarizes the latest comment.
func (v *DetailView) LastUpdate() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.request == nil {
		return models.NoUpdates
	}
	return v.request.LastUpdate()
}

// SetStatus asks the backend to move the request to status. How the displayed
// status follows depends on the configured policy. Concurrent calls apply in
// the order their responses arrive.
func (v *DetailView) SetStatus(ctx context.Context, status models.Status) error {
	if v.viewer.CurrentRole() != models.RoleAdmin {
		return ErrAdminOnly
	}

	v.mu.Lock()
	if v.request == nil {
		v.mu.Unlock()
		return ErrNotLoaded
	}
	id := v.request.Identifier()
	prev := v.status

	if !status.Valid() {
		v.mu.Unlock()
		return &ValidationError{Fields: []string{"status"}, Reason: fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)}
	}
	if !v.allowed(prev, status) {
		v.mu.Unlock()
		return &ValidationError{Fields: []string{"status"}, Reason: fmt.Errorf("%w: %s to %s", ErrInvalidTransition, prev, status)}
	}

	if v.policy != config.StatusConfirm {
		v.status = status
	}
	v.mu.Unlock()

	logger := log.With().Str("id", id).Str("from", string(prev)).Str("to", string(status)).Str("policy", string(v.policy)).Logger()

	if err := v.api.UpdateStatus(ctx, id, status); err != nil {
		checkAuth(v.viewer, err)

		if v.policy == config.StatusRollback {
			v.mu.Lock()
			if v.status == status {
				v.status = prev
			}
			v.mu.Unlock()
		}

		logger.Debug().Err(err).Msg("status update failed")
		v.notifier.Notify(statusFailure(err))
		return fmt.Errorf("failed to update status: %w", err)
	}

	v.mu.Lock()
	v.status = status
	v.request.Status = status
	v.mu.Unlock()

	logger.Debug().Msg("status updated")
	v.notifier.Notify(Notification{
		Title:       MsgStatusUpdated,
		Description: "Request status has been updated to " + string(status),
	})
	return nil
}

func statusFailure(err error) Notification {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return Notification{Title: "Error", Description: apiErr.Message, Variant: VariantDestructive}
	}
	return Notification{
		Title:       MsgUpdateFailed,
		Description: "An error occurred while updating the status.",
		Variant:     VariantDestructive,
	}
}

// SetDraft replaces the comment draft.
func (v *DetailView) SetDraft(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft = text
}

// Draft returns the comment draft.
func (v *DetailView) Draft() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.draft
}

// AddComment submits the trimmed draft. The draft is cleared once the call
// completes whatever the outcome, and only one submission runs at a time.
func (v *DetailView) AddComment(ctx context.Context) error {
	if !v.submitting.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	defer v.submitting.Store(false)
	defer v.SetDraft("")

	v.mu.RLock()
	loaded := v.request != nil
	var id string
	if loaded {
		id = v.request.Identifier()
	}
	text := strings.TrimSpace(v.draft)
	v.mu.RUnlock()

	if !loaded {
		return ErrNotLoaded
	}
	if text == "" {
		return &ValidationError{Fields: []string{"comment"}}
	}

	if err := v.api.AddComment(ctx, id, text); err != nil {
		checkAuth(v.viewer, err)
		log.Debug().Err(err).Str("id", id).Msg("comment submission failed")
		v.notifier.Notify(Notification{
			Title:       MsgSubmissionError,
			Description: "There was an issue submitting your reply. Please try again later.",
			Variant:     VariantDestructive,
		})
		return fmt.Errorf("failed to add comment: %w", err)
	}

	sender := models.SenderUser
	if v.viewer.CurrentRole() == models.RoleAdmin {
		sender = models.SenderAdmin
	}

	v.mu.Lock()
	v.request.Comments = append(v.request.Comments, models.Comment{
		Sender:    sender,
		Content:   text,
		Timestamp: v.now(),
	})
	v.mu.Unlock()

	v.notifier.Notify(Notification{
		Title:       MsgCommentAdded,
		Description: "We'll let the user know about your comment.",
	})
	return nil
}
