package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentdesk/chatlink/internal/model"
)

// loginPath is the credential exchange endpoint, relative to the REST base.
const loginPath = "/auth/user-login"

// defaultPermissions is the scope requested for every issued credential.
var defaultPermissions = []string{"read_messages", "send_messages"}

// AuthError represents a rejected credential exchange.
type AuthError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error %d: %s", e.StatusCode, e.Message)
}

// Broker exchanges the long-lived master credential for short-lived,
// user-scoped access tokens. One request per call, no automatic retry; the
// caller decides retry policy.
type Broker struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// NewBroker creates a credential broker against the given REST base URL.
func NewBroker(baseURL, masterKey string, opts ...BrokerOption) *Broker {
	b := &Broker{
		baseURL:   baseURL,
		masterKey: masterKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) BrokerOption {
	return func(b *Broker) {
		b.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) BrokerOption {
	return func(b *Broker) {
		b.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = logger
	}
}

// loginRequest is the exchange request body.
type loginRequest struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Permissions []string `json:"permissions"`
}

// loginResponse is the exchange response body.
type loginResponse struct {
	APIKey string `json:"api_key"`
}

// Authenticate exchanges the master credential for a user-scoped token.
// Returns *AuthError on a non-2xx response or a response missing the token.
func (b *Broker) Authenticate(ctx context.Context, subjectID, displayName string) (model.Credential, error) {
	body, err := json.Marshal(loginRequest{
		UserID:      subjectID,
		DisplayName: displayName,
		Permissions: defaultPermissions,
	})
	if err != nil {
		return model.Credential{}, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return model.Credential{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.masterKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return model.Credential{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Credential{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Credential{}, &AuthError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	var lr loginResponse
	if err := json.Unmarshal(respBody, &lr); err != nil {
		return model.Credential{}, fmt.Errorf("unmarshal login response: %w", err)
	}
	if lr.APIKey == "" {
		return model.Credential{}, &AuthError{
			StatusCode: resp.StatusCode,
			Message:    "response missing api_key",
			Body:       respBody,
		}
	}

	b.logger.Debug("credential issued", "subject_id", subjectID)

	return model.Credential{
		AccessToken: lr.APIKey,
		SubjectID:   subjectID,
		DisplayName: displayName,
	}, nil
}
