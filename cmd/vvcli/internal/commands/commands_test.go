package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/wolfeidau/victimvoice/internal/requests"
	"github.com/wolfeidau/victimvoice/internal/session"
	"github.com/xuri/excelize/v2"
)

// backend is a minimal in-memory stand-in for the REST API.
type backend struct {
	t        *testing.T
	mu       sync.Mutex
	requests map[string]models.SupportRequest
	created  []models.RequestForm
	tokens   map[string]string
	failPut  bool
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	b := &backend{
		t: t,
		requests: map[string]models.SupportRequest{
			"R1": {ID: "R1", UserID: "U1", Phone: "+915550100", Status: models.StatusPending,
				HarassmentType: models.HarassmentStalking, SeverityLevel: models.SeverityHigh,
				Description: "Followed home.", CreatedAt: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)},
			"R2": {ID: "R2", UserID: "U2", Phone: "+915550200", Status: models.StatusClosed,
				HarassmentType: models.HarassmentCyber, SeverityLevel: models.SeverityLow,
				CreatedAt: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)},
		},
		tokens: map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		b.json(w, map[string]any{"success": true, "token": b.tokens["user"]})
	})
	mux.HandleFunc("POST /adminlogin", func(w http.ResponseWriter, r *http.Request) {
		b.json(w, map[string]any{"success": true, "token": b.tokens["admin"]})
	})
	mux.HandleFunc("GET /admin-support-requests", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.json(w, []models.SupportRequest{b.requests["R1"], b.requests["R2"]})
	})
	mux.HandleFunc("GET /support-requests/user/{userID}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []models.SupportRequest{}
		for _, id := range []string{"R1", "R2"} {
			if req := b.requests[id]; req.UserID == r.PathValue("userID") {
				out = append(out, req)
			}
		}
		b.json(w, out)
	})
	mux.HandleFunc("GET /support-requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		req, ok := b.requests[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		b.json(w, req)
	})
	mux.HandleFunc("POST /support-requests", func(w http.ResponseWriter, r *http.Request) {
		var form models.RequestForm
		require.NoError(t, json.NewDecoder(r.Body).Decode(&form))
		b.mu.Lock()
		b.created = append(b.created, form)
		b.mu.Unlock()
	})
	mux.HandleFunc("PUT /update-status/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.failPut {
			b.json(w, map[string]any{"success": false, "error": "Failed to update status."})
			return
		}
		var body struct{ Status models.Status }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		b.mu.Lock()
		req := b.requests[r.PathValue("id")]
		req.Status = body.Status
		b.requests[req.ID] = req
		b.mu.Unlock()
		b.json(w, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /support-requests/{id}/comment", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Text string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		b.mu.Lock()
		req := b.requests[r.PathValue("id")]
		req.Comments = append(req.Comments, models.Comment{Sender: models.SenderUser, Content: body.Text})
		b.requests[req.ID] = req
		b.mu.Unlock()
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) json(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(b.t, json.NewEncoder(w).Encode(v))
}

func mintToken(t *testing.T, userID string) string {
	t.Helper()
	claims := session.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           userID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func testGlobals(t *testing.T, serverURL string) (*Globals, *bytes.Buffer) {
	t.Helper()
	t.Chdir(t.TempDir())
	out := &bytes.Buffer{}
	return &Globals{
		Version:  "test",
		Server:   serverURL,
		TokenDir: filepath.Join(t.TempDir(), "tokens"),
		Out:      out,
	}, out
}

func TestLoginAndWhoami(t *testing.T) {
	b, srv := newBackend(t)
	b.tokens["user"] = mintToken(t, "U1")
	b.tokens["admin"] = mintToken(t, "")
	globals, out := testGlobals(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, (&WhoamiCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "user   logged out")

	require.NoError(t, (&LoginVerifyCmd{Phone: "5550100", OTP: "1234"}).Run(ctx, globals))
	require.NoError(t, (&AdminLoginCmd{Email: "admin@example.com", Password: "secret"}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Login successful")

	out.Reset()
	require.NoError(t, (&WhoamiCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "U1")
	assert.NotContains(t, out.String(), "logged out")

	require.NoError(t, (&LogoutCmd{Admin: true}).Run(ctx, globals))
	out.Reset()
	require.NoError(t, (&WhoamiCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "admin  logged out")
}

func saveToken(t *testing.T, globals *Globals, role models.Role, token string) {
	t.Helper()
	store, err := session.NewStore(globals.TokenDir)
	require.NoError(t, err)
	_, err = store.Save(role, token)
	require.NoError(t, err)
}

func TestRequestsList(t *testing.T) {
	_, srv := newBackend(t)
	ctx := context.Background()

	t.Run("requires a session", func(t *testing.T) {
		globals, _ := testGlobals(t, srv.URL)
		err := (&RequestsListCmd{}).Run(ctx, globals)
		require.ErrorIs(t, err, session.ErrUnauthenticated)
		assert.Contains(t, err.Error(), "vvcli login send-otp")
	})

	t.Run("user with no requests sees the empty state", func(t *testing.T) {
		globals, out := testGlobals(t, srv.URL)
		saveToken(t, globals, models.RoleUser, mintToken(t, "U9"))

		require.NoError(t, (&RequestsListCmd{}).Run(ctx, globals))
		assert.Contains(t, out.String(), requests.MsgEmptyState)
		assert.Contains(t, out.String(), requests.MsgEmptyStateAction)
		assert.NotContains(t, out.String(), "LAST UPDATE")
	})

	t.Run("admin filters and exports", func(t *testing.T) {
		globals, out := testGlobals(t, srv.URL)
		saveToken(t, globals, models.RoleAdmin, mintToken(t, ""))
		path := filepath.Join(t.TempDir(), "SupportRequests.xlsx")

		require.NoError(t, (&RequestsListCmd{Admin: true, Query: "0200", Export: path}).Run(ctx, globals))
		assert.Contains(t, out.String(), "R2")
		assert.NotContains(t, out.String(), "R1 ")
		assert.Contains(t, out.String(), "Exported 1 requests")

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Support Requests")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"+915550200", "R2", "U2", "cyber_harassment", "low", "closed", "4/1/2024"}, rows[1])
	})

	t.Run("users cannot export", func(t *testing.T) {
		globals, _ := testGlobals(t, srv.URL)
		err := (&RequestsListCmd{Export: "out.xlsx"}).Run(ctx, globals)
		assert.ErrorIs(t, err, requests.ErrAdminOnly)
	})
}

func TestRequestsStatusAndComment(t *testing.T) {
	b, srv := newBackend(t)
	globals, out := testGlobals(t, srv.URL)
	saveToken(t, globals, models.RoleAdmin, mintToken(t, ""))
	saveToken(t, globals, models.RoleUser, mintToken(t, "U1"))
	ctx := context.Background()

	require.NoError(t, (&RequestsStatusCmd{ID: "R1", Status: "In Progress"}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Status: in progress")
	assert.Equal(t, models.StatusInProgress, b.requests["R1"].Status)

	b.failPut = true
	err := (&RequestsStatusCmd{ID: "R1", Status: "resolved"}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Failed to update status.")

	err = (&RequestsStatusCmd{ID: "R1", Status: "archived"}).Run(ctx, globals)
	assert.Error(t, err)

	require.NoError(t, (&RequestsCommentCmd{ID: "R1", Text: "  thanks  "}).Run(ctx, globals))
	assert.Contains(t, out.String(), requests.MsgCommentAdded)
	require.Len(t, b.requests["R1"].Comments, 1)
	assert.Equal(t, "thanks", b.requests["R1"].Comments[0].Content)
}

func TestRequestsNew(t *testing.T) {
	b, srv := newBackend(t)
	globals, out := testGlobals(t, srv.URL)
	saveToken(t, globals, models.RoleUser, mintToken(t, "U1"))
	ctx := context.Background()

	formPath := filepath.Join(t.TempDir(), "form.yaml")
	require.NoError(t, os.WriteFile(formPath, []byte(`
userAddress: 12 Park Street
accusedAddress: 45 Lake Road
accusedName: J. Doe
accusedPhone: "+91 5550999"
harassmentType: stalking
severityLevel: medium
description: Followed home twice.
screenshotEvidence: https://files.example.com/a.png
`), 0600))

	cmd := &RequestsNewCmd{File: formPath, List: true}
	err := cmd.Run(ctx, globals)
	var verr *requests.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"videoEvidence"}, verr.Fields)
	assert.Empty(t, b.created)

	cmd.VideoEvidence = "https://files.example.com/b.mp4"
	require.NoError(t, cmd.Run(ctx, globals))
	require.Len(t, b.created, 1)
	assert.Equal(t, "J. Doe", b.created[0].AccusedName)
	assert.Equal(t, "https://files.example.com/b.mp4", b.created[0].VideoEvidence)
	assert.Contains(t, out.String(), requests.MsgRequestSubmitted)
	assert.Contains(t, out.String(), "Total requests: 1")
}

func TestRequestsShow(t *testing.T) {
	b, srv := newBackend(t)

	evidence := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("content of " + r.URL.Path))
	}))
	t.Cleanup(evidence.Close)

	req := b.requests["R1"]
	req.Evidence = []models.Evidence{
		{Type: models.EvidenceScreenshot, URL: evidence.URL + "/shots/a.png"},
		{Type: models.EvidenceVideo, URL: evidence.URL + "/videos/b.mp4"},
	}
	b.requests["R1"] = req

	globals, out := testGlobals(t, srv.URL)
	saveToken(t, globals, models.RoleAdmin, mintToken(t, ""))
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, (&RequestsShowCmd{ID: "R1", Admin: true, Report: dir, Download: dir}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Screenshot Evidence #1")

	pdf, err := os.ReadFile(filepath.Join(dir, "Support_Request_Report.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	data, err := os.ReadFile(filepath.Join(dir, "b.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "content of /videos/b.mp4", string(data))

	archiveDir := t.TempDir()
	require.NoError(t, (&RequestsShowCmd{ID: "R1", Admin: true, Download: archiveDir, Archive: true}).Run(ctx, globals))
	_, err = os.Stat(filepath.Join(archiveDir, "evidence.zip"))
	assert.NoError(t, err)

	t.Run("evidence needs admin", func(t *testing.T) {
		err := (&RequestsShowCmd{ID: "R1", Download: dir}).Run(ctx, globals)
		assert.ErrorIs(t, err, requests.ErrAdminOnly)
	})
}
