package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gregjones/httpcache"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/logger"
	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/wolfeidau/victimvoice/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const maxBodyBytes = 10 << 20

var (
	// ErrTransport wraps network failures; the request may not have reached the backend.
	ErrTransport = errors.New("transport error")

	// ErrUnauthenticated is returned when there is no usable session or the
	// backend rejects the bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// APIError is an application level failure reported by the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
}

// Config holds common client configuration
type Config struct {
	ServerURL string
	// Timeout zero keeps the net/http default of no client timeout.
	Timeout time.Duration
	// MaxRetries applies to GET calls only. Zero disables retries.
	MaxRetries uint
	// CacheDir enables a disk cache for evidence downloads; empty uses memory.
	CacheDir string
	Debug    bool
	// Metrics records call counts and latency; nil records nothing.
	Metrics *telemetry.Metrics
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:3000",
	}
}

// Client calls the VictimVoice REST API.
type Client struct {
	baseURL    string
	plain      *http.Client
	authed     *http.Client
	evidence   *http.Client
	tokens     oauth2.TokenSource
	maxRetries uint
	newBackOff func() backoff.BackOff
	metrics    *telemetry.Metrics
}

// New creates a client. tokens may be nil for callers that only log in.
func New(config Config, tokens oauth2.TokenSource) *Client {
	base := newBaseTransport()

	c := &Client{
		baseURL: strings.TrimRight(config.ServerURL, "/"),
		plain: &http.Client{
			Transport: base,
			Timeout:   config.Timeout,
		},
		evidence:   NewCachingHTTPClient(config.CacheDir, base),
		tokens:     tokens,
		maxRetries: config.MaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		metrics:    config.Metrics,
	}
	if c.metrics == nil {
		c.metrics = telemetry.NoopMetrics()
	}

	if tokens != nil {
		c.authed = &http.Client{
			Transport: &oauth2.Transport{Source: tokens, Base: base},
			Timeout:   config.Timeout,
		}
	}

	return c
}

func newBaseTransport() http.RoundTripper {
	return otelhttp.NewTransport(logger.NewHTTPRequests(log.Logger, http.DefaultTransport))
}

// envelope is the loose response shape used by the auth and status endpoints.
type envelope struct {
	Success *bool  `json:"success,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SendOTP asks the backend to text a verification code to phoneNumber.
func (c *Client) SendOTP(ctx context.Context, phoneNumber string) (string, error) {
	var resp envelope
	err := c.do(ctx, "SendOTP", http.MethodPost, "/auth/send-otp", false,
		map[string]string{"phoneNumber": phoneNumber}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	return resp.Message, nil
}

// VerifyOTP exchanges a verification code for a user bearer token.
func (c *Client) VerifyOTP(ctx context.Context, phoneNumber, otp string) (string, error) {
	var resp envelope
	err := c.do(ctx, "VerifyOTP", http.MethodPost, "/auth/verify-otp", false,
		map[string]string{"phoneNumber": phoneNumber, "otp": otp}, &resp)
	if err != nil {
		return "", err
	}
	return resp.token("verification failed")
}

// AdminLogin exchanges administrator credentials for an admin bearer token.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (string, error) {
	var resp envelope
	err := c.do(ctx, "AdminLogin", http.MethodPost, "/adminlogin", false,
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return "", err
	}
	return resp.token("Invalid credentials")
}

func (e *envelope) token(fallback string) (string, error) {
	if e.Success != nil && *e.Success && e.Token != "" {
		return e.Token, nil
	}
	msg := e.Error
	if msg == "" {
		msg = fallback
	}
	return "", &APIError{Status: http.StatusOK, Message: msg}
}

// ListAllRequests returns every support request. Admin only.
func (c *Client) ListAllRequests(ctx context.Context) ([]models.SupportRequest, error) {
	var out []models.SupportRequest
	if err := c.do(ctx, "ListAllRequests", http.MethodGet, "/admin-support-requests", true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUserRequests returns the requests owned by userID.
func (c *Client) ListUserRequests(ctx context.Context, userID string) ([]models.SupportRequest, error) {
	var out []models.SupportRequest
	path := "/support-requests/user/" + url.PathEscape(userID)
	if err := c.do(ctx, "ListUserRequests", http.MethodGet, path, true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRequest fetches a single support request.
func (c *Client) GetRequest(ctx context.Context, id string) (*models.SupportRequest, error) {
	var out models.SupportRequest
	path := "/support-requests/" + url.PathEscape(id)
	if err := c.do(ctx, "GetRequest", http.MethodGet, path, true, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRequest files a new support request.
func (c *Client) CreateRequest(ctx context.Context, form models.RequestForm) error {
	return c.do(ctx, "CreateRequest", http.MethodPost, "/support-requests", true, form, nil)
}

// UpdateStatus sets the status of a request. Admin only.
func (c *Client) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	var resp envelope
	path := "/update-status/" + url.PathEscape(id)
	err := c.do(ctx, "UpdateStatus", http.MethodPut, path, true, map[string]string{"status": string(status)}, &resp)
	if err != nil {
		return err
	}
	if resp.Success == nil || !*resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Failed to update status."
		}
		return &APIError{Status: http.StatusOK, Message: msg}
	}
	return nil
}

// AddComment appends a comment to a request.
func (c *Client) AddComment(ctx context.Context, id, text string) error {
	path := "/support-requests/" + url.PathEscape(id) + "/comment"
	return c.do(ctx, "AddComment", http.MethodPost, path, true, map[string]string{"text": text}, nil)
}

// FetchEvidence opens an evidence URL. Evidence is hosted elsewhere so no
// bearer token is sent. The caller closes the body.
func (c *Client) FetchEvidence(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid evidence url: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	started := time.Now()
	resp, err := c.evidence.Do(req)
	if err != nil {
		c.metrics.RecordRequest(ctx, "FetchEvidence", 0, time.Since(started), err)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode, Message: "evidence download failed"}
		c.metrics.RecordRequest(ctx, "FetchEvidence", resp.StatusCode, time.Since(started), apiErr)
		return nil, apiErr
	}

	if resp.Header.Get(httpcache.XFromCache) == "1" {
		c.metrics.RecordCacheHit(ctx)
	}
	c.metrics.RecordRequest(ctx, "FetchEvidence", resp.StatusCode, time.Since(started), nil)
	return resp.Body, nil
}

// do performs one API call. Only GETs are retried, and only when MaxRetries is set.
func (c *Client) do(ctx context.Context, op, method, path string, auth bool, in, out any) error {
	if method != http.MethodGet || c.maxRetries == 0 {
		return c.roundTrip(ctx, op, method, path, auth, in, out)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.roundTrip(ctx, op, method, path, auth, in, out)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.RecordRetry(ctx, op)
			log.Debug().Err(err).Str("op", op).Dur("next", next).Msg("retrying")
		}),
	)
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= http.StatusInternalServerError
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, auth bool, in, out any) (err error) {
	started := time.Now()
	status := 0
	defer func() {
		c.metrics.RecordRequest(ctx, op, status, time.Since(started), err)
	}()

	httpClient := c.plain
	if auth {
		if c.tokens == nil {
			return fmt.Errorf("%w: no session", ErrUnauthenticated)
		}
		if _, err := c.tokens.Token(); err != nil {
			return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		httpClient = c.authed
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if auth && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: backend returned HTTP %d", ErrUnauthenticated, resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}

	return nil
}

// errorMessage pulls "error" or "message" out of a failure body.
func errorMessage(data []byte) string {
	var e envelope
	if err := json.Unmarshal(data, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		return e.Message
	}
	return ""
}
