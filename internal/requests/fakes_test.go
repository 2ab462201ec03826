package requests

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/wolfeidau/victimvoice/internal/session"
)

type fakeAPI struct {
	mu       sync.Mutex
	requests []models.SupportRequest
	err      error
	calls    atomic.Int32

	// block, when set, holds AddComment until closed.
	block chan struct{}
	// statusBlock, when set, holds UpdateStatus until closed.
	statusBlock chan struct{}

	created  []models.RequestForm
	statuses []models.Status
	comments []string
	userIDs  []string
}

func (f *fakeAPI) ListAllRequests(ctx context.Context) ([]models.SupportRequest, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.requests, nil
}

func (f *fakeAPI) ListUserRequests(ctx context.Context, userID string) ([]models.SupportRequest, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.userIDs = append(f.userIDs, userID)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.SupportRequest
	for _, r := range f.requests {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetRequest(ctx context.Context, id string) (*models.SupportRequest, error) {
	f.calls.Add(1)
	for _, r := range f.requests {
		if r.Identifier() == id {
			r := r
			return &r, nil
		}
	}
	return nil, f.err
}

func (f *fakeAPI) CreateRequest(ctx context.Context, form models.RequestForm) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.created = append(f.created, form)
	f.mu.Unlock()
	return f.err
}

func (f *fakeAPI) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.statuses = append(f.statuses, status)
	f.mu.Unlock()
	if f.statusBlock != nil {
		<-f.statusBlock
	}
	return f.err
}

func (f *fakeAPI) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statuses)
}

func (f *fakeAPI) AddComment(ctx context.Context, id, text string) error {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.comments = append(f.comments, text)
	f.mu.Unlock()
	return f.err
}

type fakeViewer struct {
	role        models.Role
	userID      string
	invalidated atomic.Bool
}

func (v *fakeViewer) CurrentRole() models.Role { return v.role }
func (v *fakeViewer) UserID() string           { return v.userID }

func (v *fakeViewer) Invalidate() error {
	v.invalidated.Store(true)
	return nil
}

func admin() *fakeViewer { return &fakeViewer{role: models.RoleAdmin} }

func user(id string) *fakeViewer { return &fakeViewer{role: models.RoleUser, userID: id} }

type fakeAuthAPI struct {
	sentTo   string
	message  string
	token    string
	err      error
	verified []string
}

func (f *fakeAuthAPI) SendOTP(ctx context.Context, phoneNumber string) (string, error) {
	f.sentTo = phoneNumber
	return f.message, f.err
}

func (f *fakeAuthAPI) VerifyOTP(ctx context.Context, phoneNumber, otp string) (string, error) {
	f.verified = append(f.verified, phoneNumber+":"+otp)
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeAuthAPI) AdminLogin(ctx context.Context, email, password string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

var _ TokenSaver = (*session.Store)(nil)

func sampleRequests() []models.SupportRequest {
	return []models.SupportRequest{
		{ID: "R1", UserID: "U1", Phone: "+91 5550100", Status: models.StatusPending, HarassmentType: models.HarassmentStalking, SeverityLevel: models.SeverityHigh},
		{ID: "R2", UserID: "U2", Phone: "+91 5550200", Status: models.StatusInProgress, HarassmentType: models.HarassmentCyber, SeverityLevel: models.SeverityLow,
			Comments: []models.Comment{{Sender: models.SenderAdmin, Content: "Looking into it"}}},
		{ID: "abc-R3", UserID: "u1", Phone: "5550300", Status: models.StatusClosed, HarassmentType: models.HarassmentVerbal, SeverityLevel: models.SeverityMedium},
	}
}
