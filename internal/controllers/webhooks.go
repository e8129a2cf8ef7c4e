package controllers

import (
	"io"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/httputil"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/webhook"
	"github.com/rs/zerolog/log"
)

type WebhookResponse struct {
	Status string `json:"status" example:"ok"`
}

func (co Controller) RegisterWebhookRoutes(r *gin.RouterGroup) {
	r.OPTIONS("/plaid", httputil.OptionsPost)
	r.POST("/plaid", co.ReceivePlaidWebhook)
}

// @Summary		Receive Plaid webhook
// @Description	Accepts a webhook from Plaid and dispatches it in the background
// @Tags			Webhooks
// @Accept			json
// @Produce		json
// @Success		200	{object}	WebhookResponse
// @Failure		400	{object}	httpError
// @Failure		401	{object}	httpError
// @Param			Plaid-Verification	header	string	false	"JWT signed by Plaid"
// @Router			/v1/webhooks/plaid [post]
func (co Controller) ReceivePlaidWebhook(c *gin.Context) {
	logger := log.With().Str("request-id", requestid.Get(c)).Logger()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abort(c, httputil.ErrInvalidBody)
		return
	}

	if co.Verifier != nil {
		if err := co.Verifier.Verify(c.Request.Context(), c.GetHeader(webhook.HeaderVerification), body); err != nil {
			logger.Warn().Err(err).Msg("rejecting unverified webhook")
			abort(c, err)
			return
		}
	}

	var payload webhook.Payload
	if err := binding.JSON.BindBody(body, &payload); err != nil {
		logger.Info().Err(err).Msg("rejecting unparseable webhook")
		abort(c, httputil.ErrInvalidBody)
		return
	}

	if err := payload.Validate(); err != nil {
		// Dispatch records the rejection without acting on it
		_ = co.Dispatcher.Dispatch(c.Request.Context(), payload)
		abort(c, err)
		return
	}

	co.Dispatcher.DispatchAsync(payload)
	c.JSON(http.StatusOK, WebhookResponse{Status: "ok"})
}
