package toon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/llanen/nl.eneco.toon/pkg/model"
	"github.com/llanen/nl.eneco.toon/pkg/retry"
)

// AuthorizeURL returns the vendor authorization page URL the user must
// visit to start the code grant.
func (s *Session) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", s.opts.ClientID)
	q.Set("redirect_uri", s.opts.RedirectURL)
	q.Set("tenant_id", s.opts.TenantID)
	if state != "" {
		q.Set("state", state)
	}
	return s.opts.AuthorizeURL + "?" + q.Encode()
}

// ExchangeCode completes the authorization code grant. The obtained token
// pair is stored on the session. Failures are terminal, the user has to
// authorize again.
func (s *Session) ExchangeCode(ctx context.Context, code string) (model.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", s.opts.ClientID)
	form.Set("client_secret", s.opts.ClientSecret)
	form.Set("redirect_uri", s.opts.RedirectURL)
	form.Set("code", code)

	token, err := s.requestToken(ctx, form)
	if err != nil {
		return model.Token{}, &AuthExchangeError{Description: describeTokenError(err), Err: err}
	}

	s.SetToken(token)
	s.logger.Info("Authorization code exchanged", "expiry", token.Expiry)
	return token, nil
}

// RefreshAccessTokens exchanges the refresh token for a new token pair.
// The exchange is retried with backoff; after exhaustion the session
// tokens are considered dead and callers should demand a new login.
func (s *Session) RefreshAccessTokens(ctx context.Context) (model.Token, error) {
	current := s.Token()
	if current.RefreshToken == "" {
		return model.Token{}, &TokenRefreshError{Description: "no refresh token available"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", s.opts.ClientID)
	form.Set("client_secret", s.opts.ClientSecret)
	form.Set("refresh_token", current.RefreshToken)

	token, err := retry.DoWithResult(ctx, s.retryConfig, func() (model.Token, error) {
		return s.requestToken(ctx, form)
	})
	if err != nil {
		return model.Token{}, &TokenRefreshError{Description: describeTokenError(err), Err: err}
	}

	s.SetToken(token)
	s.logger.Info("Access tokens refreshed", "expiry", token.Expiry)
	return token, nil
}

// requestToken posts a grant request to the token endpoint and parses the
// response into a token pair.
func (s *Session) requestToken(ctx context.Context, form url.Values) (model.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.Token{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return model.Token{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return model.Token{}, fmt.Errorf("reading token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return model.Token{}, fmt.Errorf("parsing token response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		desc := tr.ErrorDescription
		if desc == "" {
			desc = tr.Error
		}
		if desc == "" {
			desc = string(body)
		}
		return model.Token{}, &APIError{StatusCode: resp.StatusCode, Body: desc}
	}
	if tr.AccessToken == "" {
		return model.Token{}, fmt.Errorf("token response missing access_token")
	}

	return model.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

func describeTokenError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
