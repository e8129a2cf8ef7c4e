package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/audit"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/httputil"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/notify"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/syncer"
	"github.com/rs/zerolog/log"
)

// ItemCreate links a new item from the public token Link returned.
type ItemCreate struct {
	PublicToken string `json:"publicToken" binding:"required" example:"public-sandbox-b0e2c4ee-a763-4df5-bfe9-46a46bce993d"`
}

type ItemResponse struct {
	Data models.Item `json:"data"`
}

type ItemListResponse struct {
	Data []models.Item `json:"data"`
}

type SyncResponse struct {
	Data syncer.Result `json:"data"`
}

type EventListResponse struct {
	Data []models.APIEvent `json:"data"`
}

func (co Controller) RegisterItemRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", httputil.OptionsGetPost)
		r.GET("", co.GetItems)
		r.POST("", co.CreateItem)
	}

	// Item with ID
	{
		r.OPTIONS("/:id", httputil.OptionsGetDelete)
		r.GET("/:id", co.GetItem)
		r.DELETE("/:id", co.DeleteItem)
		r.OPTIONS("/:id/sync", httputil.OptionsPost)
		r.POST("/:id/sync", co.SyncItem)
		r.OPTIONS("/:id/events", httputil.OptionsGet)
		r.GET("/:id/events", co.GetItemEvents)
	}
}

// item loads the item from the path for the user.
func (co Controller) item(c *gin.Context) (models.Item, error) {
	id, err := httputil.UUIDFromString(c.Param("id"))
	if err != nil {
		return models.Item{}, err
	}

	return co.Store.ItemForUser(c.Request.Context(), userID(c), id)
}

// @Summary		Get items
// @Description	Returns all items of the user. Items with status "bad" need the user to re-authenticate via Link in update mode
// @Tags			Items
// @Produce		json
// @Success		200	{object}	ItemListResponse
// @Failure		400	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Router			/v1/items [get]
func (co Controller) GetItems(c *gin.Context) {
	items, err := co.Store.ItemsForUser(c.Request.Context(), userID(c))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ItemListResponse{Data: items})
}

// @Summary		Get item
// @Description	Returns a specific item of the user
// @Tags			Items
// @Produce		json
// @Success		200	{object}	ItemResponse
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Param			id			path		string	true	"ID formatted as string"
// @Router			/v1/items/{id} [get]
func (co Controller) GetItem(c *gin.Context) {
	item, err := co.item(c)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ItemResponse{Data: item})
}

// @Summary		Create item
// @Description	Exchanges the public token and stores the new item with its accounts. Transactions are synced in the background
// @Tags			Items
// @Accept			json
// @Produce		json
// @Success		201	{object}	ItemResponse
// @Failure		400	{object}	httpError
// @Failure		502	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Param			item		body		ItemCreate	true	"Public token from Link"
// @Router			/v1/items [post]
func (co Controller) CreateItem(c *gin.Context) {
	var body ItemCreate
	if err := httputil.BindData(c, &body); err != nil {
		abort(c, err)
		return
	}

	ctx := c.Request.Context()
	user := userID(c)

	var exchange *plaid.ExchangeResponse
	err := co.callPlaid(ctx, audit.Call{
		Name:      "itemPublicTokenExchange",
		UserID:    user,
		Arguments: map[string]any{"public_token": body.PublicToken},
	}, func() (string, error) {
		var err error
		exchange, err = co.Plaid.ItemPublicTokenExchange(ctx, body.PublicToken)
		if err != nil {
			return "", err
		}
		return exchange.RequestID, nil
	})
	if err != nil {
		abort(c, err)
		return
	}

	logger := log.With().Str("item", exchange.ItemID).Str("user", user).Logger()

	item := models.Item{
		ExternalID:  exchange.ItemID,
		UserID:      user,
		AccessToken: exchange.AccessToken,
		Status:      models.ItemStatusGood,
		Active:      true,
	}

	// The institution is only informational, linking succeeds without it
	if err := co.institution(c, &item); err != nil {
		logger.Warn().Err(err).Msg("could not load institution")
	}

	if err := co.Store.CreateItem(ctx, &item); err != nil {
		abort(c, err)
		return
	}

	var accounts *plaid.AccountsGetResponse
	err = co.callPlaid(ctx, audit.Call{
		Name:      "accountsGet",
		ItemID:    item.ExternalID,
		UserID:    user,
		Arguments: map[string]any{"access_token": item.AccessToken},
	}, func() (string, error) {
		var err error
		accounts, err = co.Plaid.AccountsGet(ctx, item.AccessToken)
		if err != nil {
			return "", err
		}
		return accounts.RequestID, nil
	})
	if err != nil {
		// The sync retries loading the accounts
		logger.Warn().Err(err).Msg("could not load accounts of new item")
	} else {
		item.Accounts, err = co.Store.UpsertAccounts(ctx, item.ID, syncer.AccountInputs(accounts.Accounts))
		if err != nil {
			abort(c, err)
			return
		}
	}

	logger.Info().Str("institution", item.InstitutionName).Int("accounts", len(item.Accounts)).Msg("item linked")
	co.Dispatcher.SyncAsync(item.ExternalID)

	c.JSON(http.StatusCreated, ItemResponse{Data: item})
}

// institution sets the institution of the item.
func (co Controller) institution(c *gin.Context, item *models.Item) error {
	ctx := c.Request.Context()

	var resp *plaid.ItemGetResponse
	err := co.callPlaid(ctx, audit.Call{
		Name:      "itemGet",
		ItemID:    item.ExternalID,
		UserID:    item.UserID,
		Arguments: map[string]any{"access_token": item.AccessToken},
	}, func() (string, error) {
		var err error
		resp, err = co.Plaid.ItemGet(ctx, item.AccessToken)
		if err != nil {
			return "", err
		}
		return resp.RequestID, nil
	})
	if err != nil {
		return err
	}

	if resp.Item.InstitutionID == nil {
		return nil
	}
	item.InstitutionID = *resp.Item.InstitutionID

	var institution *plaid.InstitutionResponse
	err = co.callPlaid(ctx, audit.Call{
		Name:      "institutionsGetById",
		ItemID:    item.ExternalID,
		UserID:    item.UserID,
		Arguments: map[string]any{"institution_id": item.InstitutionID, "country_codes": co.Link.CountryCodes},
	}, func() (string, error) {
		var err error
		institution, err = co.Plaid.InstitutionsGetByID(ctx, item.InstitutionID, co.Link.CountryCodes)
		if err != nil {
			return "", err
		}
		return institution.RequestID, nil
	})
	if err != nil {
		return err
	}

	item.InstitutionName = institution.Institution.Name
	return nil
}

// @Summary		Delete item
// @Description	Revokes the access token at Plaid and deletes the item with all its accounts and transactions
// @Tags			Items
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		502	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Param			id			path		string	true	"ID formatted as string"
// @Router			/v1/items/{id} [delete]
func (co Controller) DeleteItem(c *gin.Context) {
	item, err := co.item(c)
	if err != nil {
		abort(c, err)
		return
	}

	ctx := c.Request.Context()
	err = co.callPlaid(ctx, audit.Call{
		Name:      "itemRemove",
		ItemID:    item.ExternalID,
		UserID:    item.UserID,
		Arguments: map[string]any{"access_token": item.AccessToken},
	}, func() (string, error) {
		resp, err := co.Plaid.ItemRemove(ctx, item.AccessToken)
		if err != nil {
			return "", err
		}
		return resp.RequestID, nil
	})

	// An item Plaid does not know anymore can still be deleted here
	if err != nil && !plaid.IsCode(err, plaid.CodeItemNotFound) {
		abort(c, err)
		return
	}

	// A running sync finishes before its rows are deleted
	err = co.Engine.WithItemLock(ctx, item.ExternalID, func() error {
		return co.Store.DeleteItem(ctx, item.ExternalID)
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary		Sync item
// @Description	Syncs the item now. A request during a running sync of the item is rejected
// @Tags			Items
// @Produce		json
// @Success		200	{object}	SyncResponse
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		409	{object}	httpError
// @Failure		502	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Param			id			path		string	true	"ID formatted as string"
// @Router			/v1/items/{id}/sync [post]
func (co Controller) SyncItem(c *gin.Context) {
	item, err := co.item(c)
	if err != nil {
		abort(c, err)
		return
	}

	result, err := co.Engine.TrySync(c.Request.Context(), item.ExternalID)
	if err != nil {
		abort(c, err)
		return
	}

	if result.Aborted {
		abort(c, fmt.Errorf("%w: %w", errProvider, result.FetchErr))
		return
	}

	co.Notifier.Publish(c.Request.Context(), item.UserID, notify.Update{
		ItemID:        result.ItemID,
		AddedCount:    result.Added,
		ModifiedCount: result.Modified,
		RemovedCount:  result.Removed,
	})

	c.JSON(http.StatusOK, SyncResponse{Data: result})
}

// @Summary		Get item events
// @Description	Returns the most recent Plaid API calls and webhooks for the item
// @Tags			Items
// @Produce		json
// @Success		200	{object}	EventListResponse
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Param			id			path		string	true	"ID formatted as string"
// @Param			limit		query		int		false	"Maximum number of events to return. Defaults to 50."
// @Router			/v1/items/{id}/events [get]
func (co Controller) GetItemEvents(c *gin.Context) {
	item, err := co.item(c)
	if err != nil {
		abort(c, err)
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil {
			abort(c, httputil.ErrInvalidQuery)
			return
		}
	}

	events, err := co.Recorder.Events(c.Request.Context(), item.ExternalID, limit)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, EventListResponse{Data: events})
}
