// Package requests holds the view models behind the support request screens:
// the list, the detail workflow, new request submission and login.
package requests

import (
	"context"

	"github.com/wolfeidau/victimvoice/internal/client"
	"github.com/wolfeidau/victimvoice/internal/models"
)

// API is the part of the backend the views call.
type API interface {
	ListAllRequests(ctx context.Context) ([]models.SupportRequest, error)
	ListUserRequests(ctx context.Context, userID string) ([]models.SupportRequest, error)
	GetRequest(ctx context.Context, id string) (*models.SupportRequest, error)
	CreateRequest(ctx context.Context, form models.RequestForm) error
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	AddComment(ctx context.Context, id, text string) error
}

// Viewer is the authenticated session a view acts for.
type Viewer interface {
	Invalidator
	CurrentRole() models.Role
	UserID() string
}

var _ API = (*client.Client)(nil)
