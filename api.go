package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultLoginPath    = "/auth/login"
	DefaultRegisterPath = "/auth/register"
	maxResponseBody     = 1 << 20
)

// HTTPAPIOption customizes HTTPAPI.
type HTTPAPIOption func(*HTTPAPI)

// WithHTTPClient sets the client used for auth endpoint calls.
func WithHTTPClient(client *http.Client) HTTPAPIOption {
	return func(a *HTTPAPI) {
		if client != nil {
			a.client = client
		}
	}
}

// WithAPILogger sets the logger.
func WithAPILogger(logger Logger) HTTPAPIOption {
	return func(a *HTTPAPI) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// HTTPAPI calls the remote login and register endpoints over HTTP.
type HTTPAPI struct {
	client       *http.Client
	baseURL      string
	loginPath    string
	registerPath string
	logger       Logger
}

var _ RemoteAPI = (*HTTPAPI)(nil)

// NewHTTPAPI builds a client from cfg.
func NewHTTPAPI(cfg Config, opts ...HTTPAPIOption) *HTTPAPI {
	a := &HTTPAPI{
		client:       &http.Client{Timeout: cfg.GetRequestTimeout()},
		baseURL:      strings.TrimRight(cfg.GetBaseURL(), "/"),
		loginPath:    pathOrDefault(cfg.GetLoginPath(), DefaultLoginPath),
		registerPath: pathOrDefault(cfg.GetRegisterPath(), DefaultRegisterPath),
		logger:       NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Login posts credentials. Non-2xx statuses are returned as responses, an
// error means no response was obtained.
func (a *HTTPAPI) Login(ctx context.Context, credentials Credentials) (*AuthResponse, error) {
	return a.post(ctx, a.loginPath, credentials)
}

// Register posts a registration payload.
func (a *HTTPAPI) Register(ctx context.Context, payload map[string]any) (*AuthResponse, error) {
	return a.post(ctx, a.registerPath, payload)
}

func (a *HTTPAPI) post(ctx context.Context, path string, body any) (*AuthResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	res, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("auth request failed", "path", path, "error", err)
		return nil, err
	}
	defer res.Body.Close()

	a.logger.Debug("auth request completed", "path", path, "status", res.StatusCode, "elapsed", time.Since(started))

	return parseAuthResponse(res.StatusCode, io.LimitReader(res.Body, maxResponseBody)), nil
}

type authResponseBody struct {
	Token   string         `mapstructure:"token"`
	User    map[string]any `mapstructure:"user"`
	Message string         `mapstructure:"message"`
	Error   string         `mapstructure:"error"`
}

// parseAuthResponse never fails: bodies that are not JSON objects simply
// produce a response without token or message.
func parseAuthResponse(status int, body io.Reader) *AuthResponse {
	out := &AuthResponse{StatusCode: status}

	dec := json.NewDecoder(body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return out
	}

	var parsed authResponseBody
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &parsed,
	})
	if err != nil {
		return out
	}
	// fields that fail to decode stay zero, the rest is kept
	_ = decoder.Decode(raw)

	out.Token = strings.TrimSpace(parsed.Token)
	out.User = parsed.User
	out.Message = firstNonEmpty(parsed.Message, parsed.Error)
	return out
}

func pathOrDefault(path, def string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return def
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
