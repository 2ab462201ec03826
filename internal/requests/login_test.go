package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/victimvoice/internal/client"
	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/wolfeidau/victimvoice/internal/session"
)

func newLoginFlow(t *testing.T, api *fakeAuthAPI) (*LoginFlow, *session.Store, *RecordingNotifier) {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	notifier := &RecordingNotifier{}
	return NewLoginFlow(api, store, notifier), store, notifier
}

func TestLoginFlow_UserOTP(t *testing.T) {
	api := &fakeAuthAPI{message: "OTP sent successfully", token: "user-jwt"}
	flow, store, notifier := newLoginFlow(t, api)
	ctx := context.Background()

	require.NoError(t, flow.SendOTP(ctx, "+91", "5550100"))
	assert.Equal(t, "+915550100", api.sentTo)
	last, _ := notifier.Last()
	assert.Equal(t, "OTP sent successfully", last.Title)

	route, err := flow.VerifyOTP(ctx, "5550100", "1234")
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", route)
	assert.Equal(t, []string{"5550100:1234"}, api.verified)

	stored, err := store.Load(models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "user-jwt", stored.Token)

	_, err = store.Load(models.RoleAdmin)
	assert.ErrorIs(t, err, session.ErrTokenNotFound)
}

func TestLoginFlow_Validation(t *testing.T) {
	flow, _, _ := newLoginFlow(t, &fakeAuthAPI{})
	ctx := context.Background()

	var verr *ValidationError
	require.ErrorAs(t, flow.SendOTP(ctx, "+91", " "), &verr)
	assert.Equal(t, []string{"phoneNumber"}, verr.Fields)

	_, err := flow.VerifyOTP(ctx, "5550100", "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"otp"}, verr.Fields)

	_, err = flow.AdminLogin(ctx, "", "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email", "password"}, verr.Fields)
}

func TestLoginFlow_Admin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		flow, store, notifier := newLoginFlow(t, &fakeAuthAPI{token: "admin-jwt"})

		route, err := flow.AdminLogin(context.Background(), "admin@example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "/admin/dashboard", route)

		stored, err := store.Load(models.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, "admin-jwt", stored.Token)

		last, _ := notifier.Last()
		assert.Equal(t, "Login successful", last.Title)

		require.NoError(t, flow.Logout(models.RoleAdmin))
		_, err = store.Load(models.RoleAdmin)
		assert.ErrorIs(t, err, session.ErrTokenNotFound)
		require.NoError(t, flow.Logout(models.RoleAdmin))
	})

	t.Run("backend message is surfaced", func(t *testing.T) {
		flow, store, notifier := newLoginFlow(t, &fakeAuthAPI{err: &client.APIError{Status: 200, Message: "Invalid credentials"}})

		_, err := flow.AdminLogin(context.Background(), "admin@example.com", "wrong")
		require.Error(t, err)

		last, _ := notifier.Last()
		assert.Equal(t, "Login failed", last.Title)
		assert.Equal(t, "Invalid credentials", last.Description)

		_, err = store.Load(models.RoleAdmin)
		assert.ErrorIs(t, err, session.ErrTokenNotFound)
	})
}
