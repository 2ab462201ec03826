package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/client"
	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/wolfeidau/victimvoice/internal/session"
)

// AuthAPI is the part of the backend used before a session exists.
type AuthAPI interface {
	SendOTP(ctx context.Context, phoneNumber string) (string, error)
	VerifyOTP(ctx context.Context, phoneNumber, otp string) (string, error)
	AdminLogin(ctx context.Context, email, password string) (string, error)
}

// TokenSaver persists tokens per role.
type TokenSaver interface {
	Save(role models.Role, token string) (*session.StoredToken, error)
	Delete(role models.Role) error
}

var _ AuthAPI = (*client.Client)(nil)

// LoginFlow runs the user OTP and admin password logins.
type LoginFlow struct {
	api      AuthAPI
	store    TokenSaver
	notifier Notifier
}

func NewLoginFlow(api AuthAPI, store TokenSaver, notifier Notifier) *LoginFlow {
	return &LoginFlow{api: api, store: store, notifier: notifier}
}

// SendOTP texts a verification code to countryCode+phone.
func (l *LoginFlow) SendOTP(ctx context.Context, countryCode, phone string) error {
	if strings.TrimSpace(phone) == "" {
		return &ValidationError{Fields: []string{"phoneNumber"}}
	}

	msg, err := l.api.SendOTP(ctx, countryCode+phone)
	if err != nil {
		l.notifier.Notify(Notification{Title: "Error", Description: apiMessage(err), Variant: VariantDestructive})
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	l.notifier.Notify(Notification{Title: msg})
	return nil
}

// VerifyOTP exchanges the code for a user token and stores it.
// It returns the route to continue to.
func (l *LoginFlow) VerifyOTP(ctx context.Context, phone, otp string) (string, error) {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(otp) == "" {
		return "", &ValidationError{Fields: missing(map[string]string{"phoneNumber": phone, "otp": otp})}
	}

	token, err := l.api.VerifyOTP(ctx, phone, otp)
	if err != nil {
		log.Debug().Err(err).Msg("otp verification failed")
		l.notifier.Notify(Notification{Title: "Verification failed", Description: apiMessage(err), Variant: VariantDestructive})
		return "", fmt.Errorf("failed to verify code: %w", err)
	}

	return l.save(models.RoleUser, token)
}

// AdminLogin exchanges administrator credentials for a token and stores it.
func (l *LoginFlow) AdminLogin(ctx context.Context, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", &ValidationError{Fields: missing(map[string]string{"email": email, "password": password})}
	}

	token, err := l.api.AdminLogin(ctx, email, password)
	if err != nil {
		desc := "Error logging in admin. Please try again."
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			desc = apiErr.Message
		}
		l.notifier.Notify(Notification{Title: "Login failed", Description: desc, Variant: VariantDestructive})
		return "", fmt.Errorf("failed to log in: %w", err)
	}

	route, err := l.save(models.RoleAdmin, token)
	if err != nil {
		return "", err
	}
	l.notifier.Notify(Notification{Title: "Login successful", Description: "Welcome back, admin!"})
	return route, nil
}

// Logout clears the role's token. Logging out twice is not an error.
func (l *LoginFlow) Logout(role models.Role) error {
	if err := l.store.Delete(role); err != nil && !errors.Is(err, session.ErrTokenNotFound) {
		return fmt.Errorf("failed to log out: %w", err)
	}
	l.notifier.Notify(Notification{Title: "Logged out"})
	return nil
}

func (l *LoginFlow) save(role models.Role, token string) (string, error) {
	stored, err := l.store.Save(role, token)
	if err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	log.Debug().Str("role", string(role)).Str("fingerprint", stored.Fingerprint).Msg("token saved")
	return role.HomeRoute(), nil
}

func apiMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong. Please try again."
}

func missing(values map[string]string) []string {
	var fields []string
	for _, name := range []string{"phoneNumber", "otp", "email", "password"} {
		if v, ok := values[name]; ok && strings.TrimSpace(v) == "" {
			fields = append(fields, name)
		}
	}
	return fields
}
