package plaid

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PersonalFinanceCategory is Plaid's two level transaction category.
type PersonalFinanceCategory struct {
	Primary         string `json:"primary"`
	Detailed        string `json:"detailed"`
	ConfidenceLevel string `json:"confidence_level"`
}

// Transaction is a transaction as returned by /transactions/sync.
type Transaction struct {
	TransactionID           string                   `json:"transaction_id"`
	AccountID               string                   `json:"account_id"`
	Amount                  decimal.Decimal          `json:"amount"`
	ISOCurrencyCode         *string                  `json:"iso_currency_code"`
	UnofficialCurrencyCode  *string                  `json:"unofficial_currency_code"`
	Date                    string                   `json:"date"` // YYYY-MM-DD
	Name                    string                   `json:"name"`
	MerchantName            *string                  `json:"merchant_name"`
	Pending                 bool                     `json:"pending"`
	PersonalFinanceCategory *PersonalFinanceCategory `json:"personal_finance_category"`
}

// CurrencyCode returns the ISO code or, if there is none, the unofficial one.
func (t Transaction) CurrencyCode() string {
	return currencyCode(t.ISOCurrencyCode, t.UnofficialCurrencyCode)
}

// ParsedDate returns the posting date in UTC.
func (t Transaction) ParsedDate() (time.Time, error) {
	date, err := time.Parse(time.DateOnly, t.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s' for transaction %s: %w", t.Date, t.TransactionID, err)
	}
	return date, nil
}

// RemovedTransaction identifies a transaction Plaid no longer reports.
type RemovedTransaction struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
}

// TransactionsSyncResponse is one page of /transactions/sync.
type TransactionsSyncResponse struct {
	Added      []Transaction        `json:"added"`
	Modified   []Transaction        `json:"modified"`
	Removed    []RemovedTransaction `json:"removed"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
	RequestID  string               `json:"request_id"`
}

// Balances of an account. Any of the values may be null.
type Balances struct {
	Available              decimal.NullDecimal `json:"available"`
	Current                decimal.NullDecimal `json:"current"`
	Limit                  decimal.NullDecimal `json:"limit"`
	ISOCurrencyCode        *string             `json:"iso_currency_code"`
	UnofficialCurrencyCode *string             `json:"unofficial_currency_code"`
}

// Account as returned by /accounts/get.
type Account struct {
	AccountID    string   `json:"account_id"`
	Name         string   `json:"name"`
	OfficialName *string  `json:"official_name"`
	Mask         *string  `json:"mask"`
	Type         string   `json:"type"`
	Subtype      *string  `json:"subtype"`
	Balances     Balances `json:"balances"`
}

// CurrencyCode returns the ISO code or, if there is none, the unofficial one.
func (a Account) CurrencyCode() string {
	return currencyCode(a.Balances.ISOCurrencyCode, a.Balances.UnofficialCurrencyCode)
}

type AccountsGetResponse struct {
	Accounts  []Account `json:"accounts"`
	Item      Item      `json:"item"`
	RequestID string    `json:"request_id"`
}

// Item as returned by /item/get.
type Item struct {
	ItemID        string  `json:"item_id"`
	InstitutionID *string `json:"institution_id"`
	Webhook       string  `json:"webhook"`
	Error         *Error  `json:"error"`
}

type ItemGetResponse struct {
	Item      Item   `json:"item"`
	RequestID string `json:"request_id"`
}

type Institution struct {
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
}

type InstitutionResponse struct {
	Institution Institution `json:"institution"`
	RequestID   string      `json:"request_id"`
}

type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// LinkTokenRequest configures a Link session. Set AccessToken to open
// Link in update mode for an existing item.
type LinkTokenRequest struct {
	UserID       string
	ClientName   string
	Language     string
	Products     []string
	CountryCodes []string
	Webhook      string
	AccessToken  string
}

type LinkTokenResponse struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
	RequestID  string    `json:"request_id"`
}

type ItemRemoveResponse struct {
	RequestID string `json:"request_id"`
}

// JWK is the public key Plaid signs webhooks with.
type JWK struct {
	Alg       string `json:"alg"`
	Crv       string `json:"crv"`
	Kid       string `json:"kid"`
	Kty       string `json:"kty"`
	Use       string `json:"use"`
	X         string `json:"x"`
	Y         string `json:"y"`
	CreatedAt int64  `json:"created_at"`
	ExpiredAt *int64 `json:"expired_at"`
}

type WebhookVerificationKeyResponse struct {
	Key       JWK    `json:"key"`
	RequestID string `json:"request_id"`
}

func currencyCode(iso, unofficial *string) string {
	if iso != nil && *iso != "" {
		return *iso
	}
	if unofficial != nil {
		return *unofficial
	}
	return ""
}
