package toon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/llanen/nl.eneco.toon/pkg/model"
	"github.com/llanen/nl.eneco.toon/pkg/retry"
)

const maxResponseBody = 1 << 20

// webhookActions are the event classes a subscription asks the vendor to
// push.
var webhookActions = []string{"Thermostat", "PowerUsage", "GasUsage"}

// MetricsRecorder counts vendor API activity. Optional.
type MetricsRecorder interface {
	RecordAPIRequest(operation string)
	RecordAPIError(operation string)
}

// Options configures a Session.
type Options struct {
	ClientID           string
	ClientSecret       string
	TenantID           string
	APIBaseURL         string
	TokenURL           string
	AuthorizeURL       string
	RedirectURL        string
	WebhookCallbackURL string

	HTTPClient *http.Client
	Logger     *slog.Logger
	Retry      retry.Config
	Metrics    MetricsRecorder
}

// Session owns one OAuth2 client against the vendor API: the token pair,
// refresh logic and every authenticated call. One Session serves all
// devices bound to the same account.
type Session struct {
	opts        Options
	httpClient  *http.Client
	logger      *slog.Logger
	retryConfig retry.Config
	metrics     MetricsRecorder

	mu    sync.Mutex
	token model.Token
}

// NewSession creates a vendor API session. The token may be zero for a
// session that has not completed the code exchange yet.
func NewSession(opts Options, token model.Token) *Session {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryConfig := opts.Retry
	if retryConfig.MaxAttempts == 0 {
		retryConfig = retry.DefaultConfig()
	}
	return &Session{
		opts:        opts,
		httpClient:  httpClient,
		logger:      logger.With("component", "toon_session"),
		retryConfig: retryConfig,
		metrics:     opts.Metrics,
		token:       token,
	}
}

// record counts one logical API operation and its outcome.
func (s *Session) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordAPIRequest(operation)
	if err != nil {
		s.metrics.RecordAPIError(operation)
	}
}

// Token returns the current token pair.
func (s *Session) Token() model.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken replaces the current token pair.
func (s *Session) SetToken(token model.Token) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// GetAgreements lists the physical displays registered to the account.
func (s *Session) GetAgreements(ctx context.Context) ([]model.Agreement, error) {
	var raw []agreementResponse
	err := s.doAuthed(ctx, http.MethodGet, "agreements", nil, &raw)
	s.record("agreements", err)
	if err != nil {
		return nil, fmt.Errorf("fetching agreements: %w", err)
	}

	agreements := make([]model.Agreement, 0, len(raw))
	for _, a := range raw {
		agreements = append(agreements, a.toModel())
	}
	return agreements, nil
}

// GetStatus fetches the full status snapshot for one agreement. The read
// is idempotent and retried with backoff.
func (s *Session) GetStatus(ctx context.Context, agreementID string) (*StatusResponse, error) {
	return retry.DoWithResult(ctx, s.retryConfig, func() (*StatusResponse, error) {
		var status StatusResponse
		err := s.doAuthed(ctx, http.MethodGet, agreementID+"/status", nil, &status)
		s.record("status", err)
		if err != nil {
			return nil, fmt.Errorf("fetching status for %s: %w", agreementID, err)
		}
		return &status, nil
	})
}

// UpdateThermostat writes a full thermostat object back to the vendor.
// The vendor requires a complete object on write, so callers overlay
// their change onto the last known snapshot. Writes are not retried here:
// a partial write must not be blindly repeated.
func (s *Session) UpdateThermostat(ctx context.Context, agreementID string, info ThermostatInfo) error {
	err := s.doAuthed(ctx, http.MethodPut, agreementID+"/thermostat", info, nil)
	s.record("update_thermostat", err)
	if err != nil {
		return fmt.Errorf("updating thermostat for %s: %w", agreementID, err)
	}
	return nil
}

// RegisterWebhookSubscription ensures a push subscription exists for the
// agreement. An existing subscription with our application id and
// callback URL is left alone; otherwise a new one is posted, retried
// with backoff since subscriptions are essential for timely updates.
func (s *Session) RegisterWebhookSubscription(ctx context.Context, agreementID string) error {
	existing, err := s.GetWebhookSubscriptions(ctx, agreementID)
	if err != nil {
		// Existing subscriptions could not be listed, register anyway.
		s.logger.Warn("Failed to list webhook subscriptions", "agreement_id", agreementID, "error", err)
	}
	for _, sub := range existing {
		if sub.ApplicationID == s.opts.ClientID && sub.CallbackURL == s.opts.WebhookCallbackURL {
			s.logger.Debug("Webhook subscription already registered", "agreement_id", agreementID)
			return nil
		}
	}

	body := WebhookSubscription{
		ApplicationID:     s.opts.ClientID,
		CallbackURL:       s.opts.WebhookCallbackURL,
		SubscribedActions: webhookActions,
	}
	err = retry.Do(ctx, s.retryConfig, func() error {
		postErr := s.doAuthed(ctx, http.MethodPost, agreementID+"/webhooks", body, nil)
		s.record("register_webhook", postErr)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("registering webhook subscription for %s: %w", agreementID, err)
	}

	s.logger.Info("Webhook subscription registered", "agreement_id", agreementID)
	return nil
}

// UnregisterWebhookSubscription removes our push subscription for the
// agreement.
func (s *Session) UnregisterWebhookSubscription(ctx context.Context, agreementID string) error {
	path := agreementID + "/webhooks/" + s.opts.ClientID
	err := s.doAuthed(ctx, http.MethodDelete, path, nil, nil)
	s.record("unregister_webhook", err)
	if err != nil {
		return fmt.Errorf("unregistering webhook subscription for %s: %w", agreementID, err)
	}
	return nil
}

// GetWebhookSubscriptions lists the push subscriptions registered for
// the agreement, ours or anyone else's.
func (s *Session) GetWebhookSubscriptions(ctx context.Context, agreementID string) ([]WebhookSubscription, error) {
	var subs []WebhookSubscription
	err := s.doAuthed(ctx, http.MethodGet, agreementID+"/webhooks", nil, &subs)
	s.record("list_webhooks", err)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// doAuthed performs one authenticated call, refreshing the token pair
// and retrying once when the vendor rejects the access token.
func (s *Session) doAuthed(ctx context.Context, method, path string, reqBody, respBody any) error {
	err := s.doJSON(ctx, method, path, reqBody, respBody)
	if !IsUnauthorized(err) {
		return err
	}
	if _, refreshErr := s.RefreshAccessTokens(ctx); refreshErr != nil {
		return err
	}
	return s.doJSON(ctx, method, path, reqBody, respBody)
}

// doJSON performs one authenticated API call. Non-2xx responses are
// classified once here and returned typed; callers decide the
// user-visible consequence.
func (s *Session) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := strings.TrimSuffix(s.opts.APIBaseURL, "/") + "/" + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.Token().AccessToken)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyError(resp.StatusCode, data)
	}

	if respBody != nil && len(data) > 0 {
		if err := json.Unmarshal(data, respBody); err != nil {
			return fmt.Errorf("parsing response body: %w", err)
		}
	}
	return nil
}

// classifyError maps a non-2xx vendor response to a typed error. The
// vendor reports an unreachable display as a 500 with a communication
// error body, which must not be confused with a real server fault.
func classifyError(statusCode int, body []byte) error {
	if statusCode == http.StatusInternalServerError {
		var eb apiErrorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			if eb.Type == "communicationError" || eb.Description == "Error communicating with Toon" {
				return &CommunicationError{Description: eb.Description}
			}
		}
	}
	return &APIError{StatusCode: statusCode, Body: strings.TrimSpace(string(body))}
}
