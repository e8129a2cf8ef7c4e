// Package syncer pulls transaction changes for an item from Plaid and
// commits them to the ledger.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/morsecodescott/budget-tracker-app-sub000/internal/audit"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/ledger"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPageSize is the number of changes requested per page.
const DefaultPageSize = 100

var ErrSyncInProgress = errors.New("a sync for this item is already in progress")

var tracer = otel.Tracer("budget-tracker/syncer")

// Result reports a sync run.
//
// Added, Modified and Removed are the number of changes Plaid reported.
// When fetching from Plaid failed, Aborted is set, FetchErr holds the
// error and nothing was committed.
type Result struct {
	ItemID   string `json:"itemId"`
	UserID   string `json:"-"`
	Added    int    `json:"addedCount"`
	Modified int    `json:"modifiedCount"`
	Removed  int    `json:"removedCount"`
	Skipped  int    `json:"skippedCount"` // Changes that could not be stored, e.g. for unknown accounts
	Cursor   string `json:"-"`
	Aborted  bool   `json:"aborted"`
	FetchErr error  `json:"-"`
}

// Engine runs syncs. At most one sync per item is in flight at any time.
type Engine struct {
	client   plaid.Client
	store    *ledger.Store
	recorder *audit.Recorder
	pageSize int
	locks    *keyedLock
}

func NewEngine(client plaid.Client, store *ledger.Store, recorder *audit.Recorder, pageSize int) *Engine {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	return &Engine{
		client:   client,
		store:    store,
		recorder: recorder,
		pageSize: pageSize,
		locks:    newKeyedLock(),
	}
}

// Sync runs a sync for the item, waiting for a running one to finish
// first.
//
// Errors fetching from Plaid do not cause an error, see Result. Errors
// loading the item or committing the changes are returned.
func (e *Engine) Sync(ctx context.Context, externalItemID string) (Result, error) {
	if err := e.locks.Lock(ctx, externalItemID); err != nil {
		return Result{ItemID: externalItemID}, fmt.Errorf("waiting for running sync: %w", err)
	}
	defer e.locks.Unlock(externalItemID)

	return e.run(ctx, externalItemID)
}

// TrySync runs a sync for the item unless one is already running, in
// which case ErrSyncInProgress is returned.
func (e *Engine) TrySync(ctx context.Context, externalItemID string) (Result, error) {
	if !e.locks.TryLock(externalItemID) {
		return Result{ItemID: externalItemID}, ErrSyncInProgress
	}
	defer e.locks.Unlock(externalItemID)

	return e.run(ctx, externalItemID)
}

// WithItemLock runs fn while holding the item's sync lock, waiting for a
// running sync to finish first.
func (e *Engine) WithItemLock(ctx context.Context, externalItemID string, fn func() error) error {
	if err := e.locks.Lock(ctx, externalItemID); err != nil {
		return fmt.Errorf("waiting for running sync: %w", err)
	}
	defer e.locks.Unlock(externalItemID)

	return fn()
}

type changes struct {
	added    []plaid.Transaction
	modified []plaid.Transaction
	removed  []string
	cursor   string
}

func (e *Engine) run(ctx context.Context, externalItemID string) (result Result, err error) {
	ctx, span := tracer.Start(ctx, "sync.run", trace.WithAttributes(attribute.String("item.id", externalItemID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			syncRuns.WithLabelValues(outcomeFailed).Inc()
		}
		span.End()
	}()

	result.ItemID = externalItemID

	item, err := e.store.ItemByExternalID(ctx, externalItemID)
	if err != nil {
		return result, err
	}
	result.UserID = item.UserID

	logger := log.With().Str("item", item.ExternalID).Str("user", item.UserID).Logger()

	lastCursor := ""
	if item.Cursor != nil {
		lastCursor = *item.Cursor
	}
	result.Cursor = lastCursor

	fetched, fetchErr := e.fetch(ctx, item, lastCursor)
	accounts, accountsErr := e.fetchAccounts(ctx, item)

	if fetchErr == nil && accountsErr != nil {
		fetchErr = accountsErr
	}

	if fetchErr != nil {
		logger.Error().Err(fetchErr).Str("cursor", lastCursor).Msg("sync aborted, cursor not advanced")
		span.SetAttributes(attribute.Bool("sync.aborted", true))
		syncRuns.WithLabelValues(outcomeAborted).Inc()

		// Balances change without new transactions, keep them current
		// even when the change feed failed
		if accountsErr == nil {
			if _, err := e.store.UpsertAccounts(ctx, item.ID, accounts); err != nil {
				logger.Warn().Err(err).Msg("could not refresh accounts of aborted sync")
			}
		}

		result.Aborted = true
		result.FetchErr = fetchErr
		return result, nil
	}

	inputs, skipped := toInputs(fetched.added, fetched.modified)

	var upserted ledger.UpsertResult
	err = e.store.InTransaction(ctx, func(tx *ledger.Store) error {
		if _, err := tx.UpsertAccounts(ctx, item.ID, accounts); err != nil {
			return fmt.Errorf("upserting accounts: %w", err)
		}

		var upsertErr error
		upserted, upsertErr = tx.UpsertTransactions(ctx, item.ID, inputs)
		if upsertErr != nil {
			return fmt.Errorf("upserting transactions: %w", upsertErr)
		}

		if _, err := tx.DeleteTransactions(ctx, fetched.removed); err != nil {
			return fmt.Errorf("deleting transactions: %w", err)
		}

		return tx.SetCursor(ctx, item.ExternalID, fetched.cursor)
	})
	if err != nil {
		logger.Error().Err(err).Msg("sync commit failed")
		return result, fmt.Errorf("committing sync for item %s: %w", item.ExternalID, err)
	}

	result.Added = len(fetched.added)
	result.Modified = len(fetched.modified)
	result.Removed = len(fetched.removed)
	result.Skipped = skipped + upserted.Skipped
	result.Cursor = fetched.cursor

	syncRuns.WithLabelValues(outcomeSuccess).Inc()
	syncChanges.WithLabelValues("added").Add(float64(result.Added))
	syncChanges.WithLabelValues("modified").Add(float64(result.Modified))
	syncChanges.WithLabelValues("removed").Add(float64(result.Removed))

	span.SetAttributes(
		attribute.Int("sync.added", result.Added),
		attribute.Int("sync.modified", result.Modified),
		attribute.Int("sync.removed", result.Removed),
	)

	logger.Info().
		Int("added", result.Added).
		Int("modified", result.Modified).
		Int("removed", result.Removed).
		Int("skipped", result.Skipped).
		Msg("sync committed")

	return result, nil
}

// fetch requests pages until Plaid reports no more changes. The pages are
// only returned if all of them could be fetched.
func (e *Engine) fetch(ctx context.Context, item models.Item, cursor string) (changes, error) {
	var c changes

	for hasMore := true; hasMore; {
		call := audit.Call{
			Name:   "transactionsSync",
			ItemID: item.ExternalID,
			UserID: item.UserID,
			Arguments: map[string]any{
				"access_token": item.AccessToken,
				"cursor":       cursor,
				"count":        e.pageSize,
			},
		}

		e.recorder.Request(ctx, call)
		page, err := e.client.TransactionsSync(ctx, item.AccessToken, cursor, e.pageSize)
		if err != nil {
			e.recorder.Response(ctx, call, "", err)
			return changes{}, fmt.Errorf("fetching page after cursor '%s': %w", cursor, err)
		}
		e.recorder.Response(ctx, call, page.RequestID, nil)

		c.added = append(c.added, page.Added...)
		c.modified = append(c.modified, page.Modified...)
		for _, r := range page.Removed {
			if r.TransactionID != "" {
				c.removed = append(c.removed, r.TransactionID)
			}
		}

		cursor = page.NextCursor
		hasMore = page.HasMore
	}

	c.cursor = cursor
	return c, nil
}

func (e *Engine) fetchAccounts(ctx context.Context, item models.Item) ([]ledger.AccountInput, error) {
	call := audit.Call{
		Name:      "accountsGet",
		ItemID:    item.ExternalID,
		UserID:    item.UserID,
		Arguments: map[string]any{"access_token": item.AccessToken},
	}

	e.recorder.Request(ctx, call)
	resp, err := e.client.AccountsGet(ctx, item.AccessToken)
	if err != nil {
		e.recorder.Response(ctx, call, "", err)
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}
	e.recorder.Response(ctx, call, resp.RequestID, nil)

	return AccountInputs(resp.Accounts), nil
}

// AccountInputs converts accounts reported by Plaid for storage. Accounts
// without an id are dropped.
func AccountInputs(accounts []plaid.Account) []ledger.AccountInput {
	inputs := make([]ledger.AccountInput, 0, len(accounts))
	for _, a := range accounts {
		if a.AccountID == "" {
			log.Warn().Str("name", a.Name).Msg("skipping account without id")
			continue
		}

		inputs = append(inputs, ledger.AccountInput{
			ExternalID:       a.AccountID,
			Name:             a.Name,
			OfficialName:     deref(a.OfficialName),
			Mask:             deref(a.Mask),
			Type:             a.Type,
			Subtype:          deref(a.Subtype),
			AvailableBalance: a.Balances.Available,
			CurrentBalance:   a.Balances.Current,
			CreditLimit:      a.Balances.Limit,
			CurrencyCode:     a.CurrencyCode(),
		})
	}

	return inputs
}

// toInputs converts added and modified transactions into one batch.
// Transactions without an id or with an unparsable date are skipped.
func toInputs(added, modified []plaid.Transaction) ([]ledger.TransactionInput, int) {
	inputs := make([]ledger.TransactionInput, 0, len(added)+len(modified))
	skipped := 0

	for _, list := range [][]plaid.Transaction{added, modified} {
		for _, t := range list {
			if t.TransactionID == "" {
				log.Warn().Str("account", t.AccountID).Msg("skipping transaction without id")
				skipped++
				continue
			}

			date, err := t.ParsedDate()
			if err != nil {
				log.Warn().Err(err).Str("transaction", t.TransactionID).Msg("skipping transaction")
				skipped++
				continue
			}

			input := ledger.TransactionInput{
				ExternalID:        t.TransactionID,
				AccountExternalID: t.AccountID,
				Amount:            t.Amount,
				Date:              date,
				Name:              t.Name,
				MerchantName:      deref(t.MerchantName),
				Pending:           t.Pending,
				CurrencyCode:      t.CurrencyCode(),
			}

			if pfc := t.PersonalFinanceCategory; pfc != nil {
				input.CategoryPrimary = pfc.Primary
				input.CategoryDetailed = pfc.Detailed
				input.CategoryConfidence = pfc.ConfidenceLevel
			}

			inputs = append(inputs, input)
		}
	}

	return inputs, skipped
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
