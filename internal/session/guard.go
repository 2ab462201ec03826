package session

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/models"
	"golang.org/x/oauth2"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
)

// Claims are the fields the client reads from a bearer token.
// User tokens carry userId; admin tokens may not.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId,omitempty"`
}

// UnauthenticatedError tells the caller where to send the viewer.
type UnauthenticatedError struct {
	Role     models.Role
	Redirect string
	Reason   error
}

func (e *UnauthenticatedError) Error() string {
	return fmt.Sprintf("%s session: %v, log in via %s", e.Role, e.Reason, e.Redirect)
}

func (e *UnauthenticatedError) Is(target error) bool {
	return target == ErrUnauthenticated
}

func (e *UnauthenticatedError) Unwrap() error {
	return e.Reason
}

// TokenStore is the subset of Store the guard needs.
type TokenStore interface {
	Load(role models.Role) (*StoredToken, error)
	Delete(role models.Role) error
}

// Guard checks the stored token for a role before a protected action runs.
type Guard struct {
	store TokenStore
	now   func() time.Time
}

// NewGuard creates a guard over store.
func NewGuard(store TokenStore) *Guard {
	return &Guard{store: store, now: time.Now}
}

// WithClock replaces the guard's clock, for tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// DecodeToken reads the claims without verifying the signature.
// The client has no key; the backend stays the authority on signatures.
func DecodeToken(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// NumericDate truncates to jwt.TimePrecision, so keep the fraction of exp from the raw claims.
	fields := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp, ok := fields["exp"].(float64); ok {
		ms, frac := math.Modf(exp * 1000)
		claims.ExpiresAt = &jwt.NumericDate{Time: time.UnixMilli(int64(ms)).Add(time.Duration(frac * float64(time.Millisecond)))}
	}
	return claims, nil
}

// Valid reports whether exp*1000 is strictly greater than now in whole
// milliseconds. A token without exp is never valid.
func (c *Claims) Valid(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.After(time.UnixMilli(now.UnixMilli()))
}

// Check runs the guard for role. It returns an authenticated Session, or an
// *UnauthenticatedError after clearing any unusable token.
func (g *Guard) Check(role models.Role) (*Session, error) {
	stored, err := g.store.Load(role)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			log.Debug().Str("role", string(role)).Msg("no token stored, redirecting to login")
			return nil, g.unauthenticated(role, ErrTokenNotFound)
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	claims, err := DecodeToken(stored.Token)
	if err != nil {
		log.Debug().Err(err).Str("role", string(role)).Msg("token decode failed, clearing")
		g.clear(role)
		return nil, g.unauthenticated(role, err)
	}

	if !claims.Valid(g.now()) {
		log.Debug().Str("role", string(role)).Msg("token expired, clearing")
		g.clear(role)
		return nil, g.unauthenticated(role, ErrTokenExpired)
	}

	log.Debug().
		Str("role", string(role)).
		Str("fingerprint", stored.Fingerprint).
		Time("expires", claims.ExpiresAt.Time).
		Msg("session validated")

	return &Session{
		role:          role,
		raw:           stored.Token,
		claims:        claims,
		store:         g.store,
		authenticated: true,
	}, nil
}

// IsAuthenticated is Check reduced to a boolean signal.
func (g *Guard) IsAuthenticated(role models.Role) bool {
	_, err := g.Check(role)
	return err == nil
}

func (g *Guard) clear(role models.Role) {
	if err := g.store.Delete(role); err != nil && !errors.Is(err, ErrTokenNotFound) {
		log.Warn().Err(err).Str("role", string(role)).Msg("failed to clear token")
	}
}

func (g *Guard) unauthenticated(role models.Role, reason error) error {
	return &UnauthenticatedError{Role: role, Redirect: role.LoginRoute(), Reason: reason}
}

var _ oauth2.TokenSource = (*Session)(nil)

// Session is an explicit handle on one role's authenticated state.
// It is passed to views and the API client instead of reading storage directly.
type Session struct {
	mu            sync.RWMutex
	role          models.Role
	raw           string
	claims        *Claims
	store         TokenStore
	authenticated bool
}

// IsAuthenticated reports whether the session is still usable.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// CurrentRole returns the role the session was checked for.
func (s *Session) CurrentRole() models.Role {
	return s.role
}

// UserID returns the userId claim, empty for tokens without one.
func (s *Session) UserID() string {
	return s.claims.UserID
}

// ExpiresAt returns the token expiry.
func (s *Session) ExpiresAt() time.Time {
	return s.claims.ExpiresAt.Time
}

// Raw returns the bearer token string.
func (s *Session) Raw() string {
	return s.raw
}

// Token implements oauth2.TokenSource so the session can drive an oauth2.Transport.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.authenticated {
		return nil, &UnauthenticatedError{Role: s.role, Redirect: s.role.LoginRoute(), Reason: ErrInvalidToken}
	}

	return &oauth2.Token{
		AccessToken: s.raw,
		TokenType:   "Bearer",
		Expiry:      s.claims.ExpiresAt.Time,
	}, nil
}

// Invalidate clears the stored token and marks the session unusable.
func (s *Session) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = false
	if err := s.store.Delete(s.role); err != nil && !errors.Is(err, ErrTokenNotFound) {
		return fmt.Errorf("failed to clear token: %w", err)
	}

	log.Debug().Str("role", string(s.role)).Msg("session invalidated")
	return nil
}
