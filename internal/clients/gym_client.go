// internal/clients/gym_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"ironcore/internal/account"
	"ironcore/internal/apperr"
)

const requestIDHeader = "X-Request-ID"

// Options configures a GymClient.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Logger    *zap.Logger
	Transport http.RoundTripper
}

// GymClient talks to the gym REST API. Session credentials travel as cookies
// kept in the client's jar, so one GymClient represents one signed-in user.
type GymClient struct {
	http   *resty.Client
	log    *zap.Logger
	tracer trace.Tracer
}

func NewGymClient(opts Options) (*GymClient, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("gym client: base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("gym client: cookie jar: %w", err)
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetTransport(otelhttp.NewTransport(opts.Transport)).
		SetCookieJar(jar).
		SetHeader("Accept", "application/json")

	return &GymClient{
		http:   rc,
		log:    opts.Logger.Named("gymapi"),
		tracer: otel.Tracer("ironcore/clients"),
	}, nil
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do executes one request. Transport failures and non-2xx answers become
// *apperr.NetworkError; an empty or "null" body leaves out untouched.
func (c *GymClient) do(ctx context.Context, op, method, path string, build func(*resty.Request), out any) error {
	ctx, span := c.tracer.Start(ctx, "gymapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
	defer span.End()

	requestID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, requestID)
	if build != nil {
		build(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.log.Warn("request failed", zap.String("op", op), zap.String("request_id", requestID), zap.Error(err))
		return &apperr.NetworkError{Op: op, Err: err}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		nerr := &apperr.NetworkError{Op: op, StatusCode: resp.StatusCode()}
		var body apiError
		if json.Unmarshal(resp.Body(), &body) == nil {
			if msg := firstNonEmpty(body.Message, body.Error); msg != "" {
				nerr.Err = errors.New(msg)
			}
		}
		span.SetStatus(codes.Error, resp.Status())
		c.log.Warn("unexpected status",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode()),
		)
		return nerr
	}

	raw := bytes.TrimSpace(resp.Body())
	if out == nil || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		span.RecordError(err)
		return &apperr.NetworkError{Op: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}

	c.log.Debug("request done", zap.String("op", op), zap.String("request_id", requestID), zap.Duration("took", resp.Time()))
	return nil
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *GymClient) Register(ctx context.Context, in RegisterRequest) (account.User, error) {
	var u account.User
	err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(in)
	}, &u)
	return u, err
}

// Login opens a session; the session cookie is kept for later calls.
func (c *GymClient) Login(ctx context.Context, username, password string) (account.User, error) {
	var u account.User
	err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"username": username, "password": password})
	}, &u)
	return u, err
}

func (c *GymClient) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the user owning the current session.
func (c *GymClient) Me(ctx context.Context) (account.User, error) {
	var u account.User
	err := c.do(ctx, "current_user", http.MethodGet, "/api/users/me", nil, &u)
	return u, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
