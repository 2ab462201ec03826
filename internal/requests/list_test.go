package requests

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/victimvoice/internal/client"
	"github.com/wolfeidau/victimvoice/internal/models"
)

func ids(reqs []models.SupportRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Identifier())
	}
	return out
}

func TestFilter(t *testing.T) {
	reqs := sampleRequests()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "empty query returns all", query: "", want: []string{"R1", "R2", "abc-R3"}},
		{name: "identifier", query: "r2", want: []string{"R2"}},
		{name: "identifier substring", query: "R", want: []string{"R1", "R2", "abc-R3"}},
		{name: "user id is case insensitive", query: "U1", want: []string{"R1", "abc-R3"}},
		{name: "phone", query: "0200", want: []string{"R2"}},
		{name: "no match", query: "zzz", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(reqs, tt.query)
			assert.Equal(t, tt.want, ids(got))

			// Idempotent and a subset of the input.
			assert.Equal(t, ids(got), ids(Filter(got, tt.query)))
			for _, r := range got {
				assert.Contains(t, reqs, r)
			}
		})
	}

	t.Run("does not alias the input", func(t *testing.T) {
		got := Filter(reqs, "")
		got[0].ID = "changed"
		assert.Equal(t, "R1", reqs[0].ID)
	})
}

func TestListView_LoadByRole(t *testing.T) {
	t.Run("admin sees everything", func(t *testing.T) {
		api := &fakeAPI{requests: sampleRequests()}
		view := NewListView(api, admin(), &RecordingNotifier{})

		require.NoError(t, view.Load(context.Background()))
		assert.Len(t, view.Visible(), 3)
		assert.Empty(t, api.userIDs)

		view.SetQuery("u2")
		assert.Equal(t, []string{"R2"}, ids(view.Visible()))
		assert.Len(t, view.All(), 3)
	})

	t.Run("user sees their own requests", func(t *testing.T) {
		api := &fakeAPI{requests: sampleRequests()}
		view := NewListView(api, user("U1"), &RecordingNotifier{})

		require.NoError(t, view.Load(context.Background()))
		assert.Equal(t, []string{"U1"}, api.userIDs)
		assert.Equal(t, []string{"R1"}, ids(view.Visible()))

		_, empty := view.EmptyState()
		assert.False(t, empty)
	})

	t.Run("user token without id", func(t *testing.T) {
		api := &fakeAPI{}
		viewer := user("")
		view := NewListView(api, viewer, &RecordingNotifier{})

		err := view.Load(context.Background())
		require.ErrorIs(t, err, client.ErrUnauthenticated)
		assert.Zero(t, api.calls.Load())
		assert.True(t, viewer.invalidated.Load())
	})
}

func TestListView_LoadFailure(t *testing.T) {
	api := &fakeAPI{requests: sampleRequests()}
	notifier := &RecordingNotifier{}
	view := NewListView(api, admin(), notifier)
	require.NoError(t, view.Load(context.Background()))

	api.err = fmt.Errorf("%w: connection refused", client.ErrTransport)
	err := view.Load(context.Background())
	require.ErrorIs(t, err, client.ErrTransport)

	assert.Empty(t, view.Visible())
	last, ok := notifier.Last()
	require.True(t, ok)
	assert.Equal(t, MsgLoadFailed, last.Description)
	assert.Equal(t, VariantDestructive, last.Variant)
}

func TestListView_RejectedTokenInvalidatesSession(t *testing.T) {
	api := &fakeAPI{err: fmt.Errorf("%w: backend returned HTTP 401", client.ErrUnauthenticated)}
	viewer := admin()
	view := NewListView(api, viewer, &RecordingNotifier{})

	require.ErrorIs(t, view.Load(context.Background()), client.ErrUnauthenticated)
	assert.True(t, viewer.invalidated.Load())
}

func TestListView_EmptyState(t *testing.T) {
	t.Run("user with no requests", func(t *testing.T) {
		view := NewListView(&fakeAPI{requests: sampleRequests()}, user("U9"), &RecordingNotifier{})
		require.NoError(t, view.Load(context.Background()))

		state, ok := view.EmptyState()
		require.True(t, ok)
		assert.Equal(t, MsgEmptyState, state.Message)
		assert.Equal(t, MsgEmptyStateAction, state.Action)
		assert.Empty(t, view.Summaries())
	})

	t.Run("admin never gets the prompt", func(t *testing.T) {
		view := NewListView(&fakeAPI{}, admin(), &RecordingNotifier{})
		require.NoError(t, view.Load(context.Background()))

		_, ok := view.EmptyState()
		assert.False(t, ok)
	})
}

func TestListView_Summaries(t *testing.T) {
	view := NewListView(&fakeAPI{requests: sampleRequests()}, admin(), &RecordingNotifier{})
	require.NoError(t, view.Load(context.Background()))

	rows := view.Summaries()
	require.Len(t, rows, 3)

	assert.Equal(t, "R1", rows[0].ID)
	assert.Equal(t, "stalking", rows[0].Title)
	assert.Equal(t, models.NoUpdates, rows[0].LastUpdate)
	assert.Empty(t, rows[0].Messages)
	assert.Equal(t, "red", rows[0].Icon.Color)

	assert.Equal(t, "1 new messages", rows[1].Messages)
	assert.Equal(t, "Looking into it", rows[1].LastUpdate)
	assert.Equal(t, models.StatusInProgress, rows[1].Status)
}
