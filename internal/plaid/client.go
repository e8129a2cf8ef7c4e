// Package plaid is a minimal client for the parts of the Plaid API this
// service uses.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Environments and their API hosts.
var environments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

const defaultTimeout = 30 * time.Second

// Client is the Plaid API as used by the sync engine and the link flow.
type Client interface {
	TransactionsSync(ctx context.Context, accessToken, cursor string, count int) (*TransactionsSyncResponse, error)
	AccountsGet(ctx context.Context, accessToken string) (*AccountsGetResponse, error)
	ItemGet(ctx context.Context, accessToken string) (*ItemGetResponse, error)
	InstitutionsGetByID(ctx context.Context, institutionID string, countryCodes []string) (*InstitutionResponse, error)
	ItemPublicTokenExchange(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	LinkTokenCreate(ctx context.Context, request LinkTokenRequest) (*LinkTokenResponse, error)
	ItemRemove(ctx context.Context, accessToken string) (*ItemRemoveResponse, error)
	WebhookVerificationKeyGet(ctx context.Context, keyID string) (*WebhookVerificationKeyResponse, error)
}

// Options configures an HTTPClient.
type Options struct {
	ClientID    string
	Secret      string
	Environment string        // sandbox, development or production
	BaseURL     string        // Overrides the environment's host
	Timeout     time.Duration // Per request, defaults to 30 seconds
	RateLimit   float64       // Requests per second, 0 disables limiting
}

// HTTPClient talks JSON over HTTPS to the Plaid API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	limiter    *rate.Limiter
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the configured environment.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		var ok bool
		baseURL, ok = environments[strings.ToLower(opts.Environment)]
		if !ok {
			return nil, fmt.Errorf("unknown plaid environment '%s'", opts.Environment)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   opts.ClientID,
		secret:     opts.Secret,
		limiter:    limiter,
	}, nil
}

// post sends body to the endpoint and decodes the response into out.
// Non 2xx responses are decoded into an *Error.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", path, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PLAID-CLIENT-ID", c.clientID)
	req.Header.Set("PLAID-SECRET", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		plaidErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, plaidErr); err != nil || plaidErr.ErrorCode == "" {
			return fmt.Errorf("plaid request to %s failed with status %d: %s", path, resp.StatusCode, string(data))
		}
		return plaidErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	return nil
}

type syncOptions struct {
	IncludePersonalFinanceCategory bool `json:"include_personal_finance_category"`
}

func (c *HTTPClient) TransactionsSync(ctx context.Context, accessToken, cursor string, count int) (*TransactionsSyncResponse, error) {
	body := struct {
		AccessToken string      `json:"access_token"`
		Cursor      string      `json:"cursor,omitempty"`
		Count       int         `json:"count,omitempty"`
		Options     syncOptions `json:"options"`
	}{accessToken, cursor, count, syncOptions{IncludePersonalFinanceCategory: true}}

	var out TransactionsSyncResponse
	if err := c.post(ctx, "/transactions/sync", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) AccountsGet(ctx context.Context, accessToken string) (*AccountsGetResponse, error) {
	body := struct {
		AccessToken string `json:"access_token"`
	}{accessToken}

	var out AccountsGetResponse
	if err := c.post(ctx, "/accounts/get", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ItemGet(ctx context.Context, accessToken string) (*ItemGetResponse, error) {
	body := struct {
		AccessToken string `json:"access_token"`
	}{accessToken}

	var out ItemGetResponse
	if err := c.post(ctx, "/item/get", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) InstitutionsGetByID(ctx context.Context, institutionID string, countryCodes []string) (*InstitutionResponse, error) {
	body := struct {
		InstitutionID string   `json:"institution_id"`
		CountryCodes  []string `json:"country_codes"`
	}{institutionID, countryCodes}

	var out InstitutionResponse
	if err := c.post(ctx, "/institutions/get_by_id", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ItemPublicTokenExchange(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	body := struct {
		PublicToken string `json:"public_token"`
	}{publicToken}

	var out ExchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type linkUser struct {
	ClientUserID string `json:"client_user_id"`
}

func (c *HTTPClient) LinkTokenCreate(ctx context.Context, request LinkTokenRequest) (*LinkTokenResponse, error) {
	body := struct {
		ClientName   string   `json:"client_name"`
		Language     string   `json:"language"`
		CountryCodes []string `json:"country_codes"`
		User         linkUser `json:"user"`
		Products     []string `json:"products,omitempty"`
		Webhook      string   `json:"webhook,omitempty"`
		AccessToken  string   `json:"access_token,omitempty"`
	}{
		ClientName:   request.ClientName,
		Language:     request.Language,
		CountryCodes: request.CountryCodes,
		User:         linkUser{ClientUserID: request.UserID},
		Webhook:      request.Webhook,
		AccessToken:  request.AccessToken,
	}

	// Products must not be sent in update mode
	if request.AccessToken == "" {
		body.Products = request.Products
	}

	var out LinkTokenResponse
	if err := c.post(ctx, "/link/token/create", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ItemRemove(ctx context.Context, accessToken string) (*ItemRemoveResponse, error) {
	body := struct {
		AccessToken string `json:"access_token"`
	}{accessToken}

	var out ItemRemoveResponse
	if err := c.post(ctx, "/item/remove", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) WebhookVerificationKeyGet(ctx context.Context, keyID string) (*WebhookVerificationKeyResponse, error) {
	body := struct {
		KeyID string `json:"key_id"`
	}{keyID}

	var out WebhookVerificationKeyResponse
	if err := c.post(ctx, "/webhook_verification_key/get", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
