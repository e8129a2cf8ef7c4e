package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/audit"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/httputil"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
)

// LinkTokenCreate is the body of a link token request. The body is
// optional, without an item a new connection is linked.
type LinkTokenCreate struct {
	ItemID uuid.UUID `json:"itemId" example:"0c2a9bd5-3a51-4b55-a9ad-5e4bd1b3e2b6"` // Opens Link in update mode to repair this item
}

type LinkToken struct {
	LinkToken  string    `json:"linkToken" example:"link-sandbox-af1a0311-da53-4636-b754-dd15cc058176"`
	Expiration time.Time `json:"expiration" example:"2024-03-01T04:00:00Z"`
}

type LinkTokenResponse struct {
	Data LinkToken `json:"data"`
}

func (co Controller) RegisterLinkRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsPost)
	r.POST("", co.CreateLinkToken)
}

// @Summary		Create link token
// @Description	Creates a token to initialize Link in the client. With an item ID, Link opens in update mode
// @Tags			Link
// @Accept			json
// @Produce		json
// @Success		200	{object}	LinkTokenResponse
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		502	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Param			linkToken	body		LinkTokenCreate	false	"Item to repair"
// @Router			/v1/link-token [post]
func (co Controller) CreateLinkToken(c *gin.Context) {
	var body LinkTokenCreate
	if err := httputil.BindData(c, &body); err != nil && !errors.Is(err, httputil.ErrRequestBodyEmpty) {
		abort(c, err)
		return
	}

	request := plaid.LinkTokenRequest{
		UserID:       userID(c),
		ClientName:   co.Link.ClientName,
		Language:     co.Link.Language,
		Products:     co.Link.Products,
		CountryCodes: co.Link.CountryCodes,
		Webhook:      co.Link.WebhookURL,
	}

	var item models.Item
	if body.ItemID != uuid.Nil {
		var err error
		item, err = co.Store.ItemForUser(c.Request.Context(), userID(c), body.ItemID)
		if err != nil {
			abort(c, err)
			return
		}
		request.AccessToken = item.AccessToken
	}

	var resp *plaid.LinkTokenResponse
	err := co.callPlaid(c.Request.Context(), audit.Call{
		Name:   "linkTokenCreate",
		ItemID: item.ExternalID,
		UserID: userID(c),
		Arguments: map[string]any{
			"access_token":  request.AccessToken,
			"products":      request.Products,
			"country_codes": request.CountryCodes,
			"webhook":       request.Webhook,
		},
	}, func() (string, error) {
		var err error
		resp, err = co.Plaid.LinkTokenCreate(c.Request.Context(), request)
		if err != nil {
			return "", err
		}
		return resp.RequestID, nil
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, LinkTokenResponse{Data: LinkToken{
		LinkToken:  resp.LinkToken,
		Expiration: resp.Expiration,
	}})
}
