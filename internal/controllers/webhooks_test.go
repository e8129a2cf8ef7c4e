package controllers_test

import (
	"net/http"

	"github.com/morsecodescott/budget-tracker-app-sub000/internal/controllers"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/webhook"
	"github.com/morsecodescott/budget-tracker-app-sub000/test"
)

const syncWebhook = `{"webhook_type": "TRANSACTIONS", "webhook_code": "SYNC_UPDATES_AVAILABLE", "item_id": "item-1", "initial_update_complete": true, "historical_update_complete": false, "environment": "sandbox"}`

func (suite *ControllerSuite) TestWebhookSync() {
	suite.createItem("item-1", "user-1")
	session := suite.hub.Subscribe("user-1")

	// Plaid does not send a user header
	recorder := suite.request(http.MethodPost, "/v1/webhooks/plaid", syncWebhook, map[string]string{})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var response controllers.WebhookResponse
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal("ok", response.Status)

	suite.dispatcher.Wait()

	suite.Assert().Equal(int64(1), suite.countTransactions())
	suite.Assert().Equal(1, suite.plaid.Calls("TransactionsSync"))

	item, err := suite.store.ItemByExternalID(suite.ctx, "item-1")
	suite.Require().Nil(err)
	suite.Require().NotNil(item.Cursor)
	suite.Assert().Equal("cursor-1", *item.Cursor)

	events := suite.webhookEvents()
	suite.Require().Len(events, 1)
	suite.Assert().Equal(models.WebhookProcessed, events[0].Status)
	suite.Assert().Equal("added=1 modified=0 removed=0", events[0].Detail)

	suite.Require().Len(session.Events(), 1)
	event := <-session.Events()
	suite.Assert().Equal("transactions update", event.Name)
}

func (suite *ControllerSuite) TestWebhookInvalidJSON() {
	recorder := suite.request(http.MethodPost, "/v1/webhooks/plaid", `{"webhook_type": `)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

	suite.dispatcher.Wait()
	suite.Assert().Len(suite.webhookEvents(), 0)
}

func (suite *ControllerSuite) TestWebhookMissingFields() {
	suite.createItem("item-1", "user-1")

	tests := []string{
		`{"webhook_type": "TRANSACTIONS", "webhook_code": "SYNC_UPDATES_AVAILABLE"}`,
		`{"webhook_type": "ITEM", "item_id": "item-1"}`,
	}

	for i, body := range tests {
		recorder := suite.request(http.MethodPost, "/v1/webhooks/plaid", body)
		test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)

		suite.dispatcher.Wait()

		events := suite.webhookEvents()
		suite.Require().Len(events, i+1, "every rejection is recorded once")
		suite.Assert().Equal(models.WebhookError, events[i].Status)
	}

	suite.Assert().Equal(0, suite.plaid.Calls("TransactionsSync"))
	suite.Assert().Equal(int64(0), suite.countTransactions())
}

func (suite *ControllerSuite) TestWebhookItemLoginRequired() {
	suite.createItem("item-1", "user-1")

	recorder := suite.request(http.MethodPost, "/v1/webhooks/plaid", `{
		"webhook_type": "ITEM",
		"webhook_code": "ERROR",
		"item_id": "item-1",
		"error": {"error_type": "ITEM_ERROR", "error_code": "ITEM_LOGIN_REQUIRED", "error_message": "the login details of this item have changed", "display_message": null}
	}`)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)
	suite.dispatcher.Wait()

	item, err := suite.store.ItemByExternalID(suite.ctx, "item-1")
	suite.Require().Nil(err)
	suite.Assert().Equal(models.ItemStatusBad, item.Status)

	// The status is shown to the user
	recorder = suite.request(http.MethodGet, "/v1/items", nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var response controllers.ItemListResponse
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Require().Len(response.Data, 1)
	suite.Assert().Equal(models.ItemStatusBad, response.Data[0].Status)
}

func (suite *ControllerSuite) TestWebhookVerification() {
	suite.controller.Verifier = webhook.NewVerifier(suite.plaid)
	suite.route()

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"missing header", map[string]string{}},
		{"garbage", map[string]string{webhook.HeaderVerification: "not-a-jwt"}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			recorder := suite.request(http.MethodPost, "/v1/webhooks/plaid", syncWebhook, tt.headers)
			test.AssertHTTPStatus(suite.T(), &recorder, http.StatusUnauthorized)
		})
	}

	suite.dispatcher.Wait()
	suite.Assert().Len(suite.webhookEvents(), 0)
	suite.Assert().Equal(0, suite.plaid.Calls("TransactionsSync"))
}
