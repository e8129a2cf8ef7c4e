// Package plaidtest provides a configurable fake of the Plaid client.
package plaidtest

import (
	"context"
	"errors"
	"sync"

	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
)

var errNotConfigured = errors.New("plaidtest: call not configured")

// Client implements plaid.Client with one function field per call.
// Calls without a function return an error. Calls are counted by name.
type Client struct {
	TransactionsSyncFunc          func(ctx context.Context, accessToken, cursor string, count int) (*plaid.TransactionsSyncResponse, error)
	AccountsGetFunc               func(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error)
	ItemGetFunc                   func(ctx context.Context, accessToken string) (*plaid.ItemGetResponse, error)
	InstitutionsGetByIDFunc       func(ctx context.Context, institutionID string, countryCodes []string) (*plaid.InstitutionResponse, error)
	ItemPublicTokenExchangeFunc   func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error)
	LinkTokenCreateFunc           func(ctx context.Context, request plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error)
	ItemRemoveFunc                func(ctx context.Context, accessToken string) (*plaid.ItemRemoveResponse, error)
	WebhookVerificationKeyGetFunc func(ctx context.Context, keyID string) (*plaid.WebhookVerificationKeyResponse, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ plaid.Client = (*Client)(nil)

// Calls returns how often the named method was called.
func (c *Client) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Client) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[method]++
}

func (c *Client) TransactionsSync(ctx context.Context, accessToken, cursor string, count int) (*plaid.TransactionsSyncResponse, error) {
	c.record("TransactionsSync")
	if c.TransactionsSyncFunc == nil {
		return nil, errNotConfigured
	}
	return c.TransactionsSyncFunc(ctx, accessToken, cursor, count)
}

func (c *Client) AccountsGet(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error) {
	c.record("AccountsGet")
	if c.AccountsGetFunc == nil {
		return nil, errNotConfigured
	}
	return c.AccountsGetFunc(ctx, accessToken)
}

func (c *Client) ItemGet(ctx context.Context, accessToken string) (*plaid.ItemGetResponse, error) {
	c.record("ItemGet")
	if c.ItemGetFunc == nil {
		return nil, errNotConfigured
	}
	return c.ItemGetFunc(ctx, accessToken)
}

func (c *Client) InstitutionsGetByID(ctx context.Context, institutionID string, countryCodes []string) (*plaid.InstitutionResponse, error) {
	c.record("InstitutionsGetByID")
	if c.InstitutionsGetByIDFunc == nil {
		return nil, errNotConfigured
	}
	return c.InstitutionsGetByIDFunc(ctx, institutionID, countryCodes)
}

func (c *Client) ItemPublicTokenExchange(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
	c.record("ItemPublicTokenExchange")
	if c.ItemPublicTokenExchangeFunc == nil {
		return nil, errNotConfigured
	}
	return c.ItemPublicTokenExchangeFunc(ctx, publicToken)
}

func (c *Client) LinkTokenCreate(ctx context.Context, request plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error) {
	c.record("LinkTokenCreate")
	if c.LinkTokenCreateFunc == nil {
		return nil, errNotConfigured
	}
	return c.LinkTokenCreateFunc(ctx, request)
}

func (c *Client) ItemRemove(ctx context.Context, accessToken string) (*plaid.ItemRemoveResponse, error) {
	c.record("ItemRemove")
	if c.ItemRemoveFunc == nil {
		return nil, errNotConfigured
	}
	return c.ItemRemoveFunc(ctx, accessToken)
}

func (c *Client) WebhookVerificationKeyGet(ctx context.Context, keyID string) (*plaid.WebhookVerificationKeyResponse, error) {
	c.record("WebhookVerificationKeyGet")
	if c.WebhookVerificationKeyGetFunc == nil {
		return nil, errNotConfigured
	}
	return c.WebhookVerificationKeyGetFunc(ctx, keyID)
}

// Pages returns a TransactionsSyncFunc that serves the pages in order.
// The cursor sent for page n must equal the next_cursor of page n-1.
func Pages(pages ...*plaid.TransactionsSyncResponse) func(context.Context, string, string, int) (*plaid.TransactionsSyncResponse, error) {
	var mu sync.Mutex
	next := 0

	return func(_ context.Context, _, cursor string, _ int) (*plaid.TransactionsSyncResponse, error) {
		mu.Lock()
		defer mu.Unlock()

		if next >= len(pages) {
			return nil, errors.New("plaidtest: no more pages")
		}

		if next > 0 && pages[next-1].NextCursor != cursor {
			return nil, errors.New("plaidtest: unexpected cursor " + cursor)
		}

		page := pages[next]
		next++
		return page, nil
	}
}
