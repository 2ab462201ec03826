package requests

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/client"
	"github.com/wolfeidau/victimvoice/internal/models"
)

// EmptyState is the prompt shown to a user with no requests.
type EmptyState struct {
	Message string
	Action  string
	Route   string
}

// Summary is one rendered row of the list.
type Summary struct {
	ID          string
	Title       string
	Status      models.Status
	StatusLabel string
	StatusColor string
	Severity    models.Severity
	Icon        models.PriorityIcon
	Messages    string
	LastUpdate  string
	CreatedAt   time.Time
}

// ListView shows the requests visible to the viewer's role.
// Every Load is a full refetch; nothing is cached between loads.
type ListView struct {
	api      API
	viewer   Viewer
	notifier Notifier

	mu     sync.RWMutex
	all    []models.SupportRequest
	query  string
	loaded bool
}

func NewListView(api API, viewer Viewer, notifier Notifier) *ListView {
	return &ListView{api: api, viewer: viewer, notifier: notifier}
}

// Load fetches every request for an admin, or the viewer's own requests for a user.
// On failure the list is left empty.
func (v *ListView) Load(ctx context.Context) error {
	role := v.viewer.CurrentRole()

	var (
		reqs []models.SupportRequest
		err  error
	)
	switch role {
	case models.RoleAdmin:
		reqs, err = v.api.ListAllRequests(ctx)
	default:
		userID := v.viewer.UserID()
		if userID == "" {
			err = fmt.Errorf("%w: token has no userId", client.ErrUnauthenticated)
			break
		}
		reqs, err = v.api.ListUserRequests(ctx, userID)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.all = nil
		v.loaded = false
		checkAuth(v.viewer, err)
		log.Debug().Err(err).Str("role", string(role)).Msg("list load failed")
		v.notifier.Notify(Notification{Title: "Error", Description: MsgLoadFailed, Variant: VariantDestructive})
		return fmt.Errorf("failed to load support requests: %w", err)
	}

	v.all = reqs
	v.loaded = true
	log.Debug().Int("count", len(reqs)).Str("role", string(role)).Msg("support requests loaded")
	return nil
}

// SetQuery changes the filter. The query lives only in this view.
func (v *ListView) SetQuery(query string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query = query
}

// All returns every loaded request, ignoring the query.
func (v *ListView) All() []models.SupportRequest {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]models.SupportRequest(nil), v.all...)
}

// Visible returns the loaded requests matching the current query.
func (v *ListView) Visible() []models.SupportRequest {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Filter(v.all, v.query)
}

// EmptyState reports the prompt to show a user whose list is empty.
// Admins never get one.
func (v *ListView) EmptyState() (EmptyState, bool) {
	if v.viewer.CurrentRole() != models.RoleUser {
		return EmptyState{}, false
	}
	if len(v.Visible()) > 0 {
		return EmptyState{}, false
	}
	return EmptyState{
		Message: MsgEmptyState,
		Action:  MsgEmptyStateAction,
		Route:   "/dashboard/new-request",
	}, true
}

// Summaries renders the visible requests.
func (v *ListView) Summaries() []Summary {
	visible := v.Visible()
	out := make([]Summary, 0, len(visible))
	for i := range visible {
		out = append(out, Summarize(&visible[i]))
	}
	return out
}

// Summarize derives the display fields of one request.
func Summarize(r *models.SupportRequest) Summary {
	title := r.Title
	if title == "" {
		title = r.HarassmentType.Label()
	}
	return Summary{
		ID:          r.Identifier(),
		Title:       title,
		Status:      r.Status,
		StatusLabel: r.Status.Label(),
		StatusColor: r.Status.Color(),
		Severity:    r.SeverityLevel,
		Icon:        r.SeverityLevel.Icon(),
		Messages:    r.MessageSummary(),
		LastUpdate:  r.LastUpdate(),
		CreatedAt:   r.CreatedAt,
	}
}

// Filter returns the requests whose identifier, userId or phone contains
// query, ignoring case. An empty query matches everything.
func Filter(reqs []models.SupportRequest, query string) []models.SupportRequest {
	q := strings.ToLower(query)
	if q == "" {
		return append([]models.SupportRequest(nil), reqs...)
	}

	out := make([]models.SupportRequest, 0, len(reqs))
	for _, r := range reqs {
		if strings.Contains(strings.ToLower(r.Identifier()), q) ||
			strings.Contains(strings.ToLower(r.UserID), q) ||
			strings.Contains(strings.ToLower(r.Phone), q) {
			out = append(out, r)
		}
	}
	return out
}
