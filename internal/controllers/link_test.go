package controllers_test

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/controllers"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/morsecodescott/budget-tracker-app-sub000/test"
)

func (suite *ControllerSuite) linkTokenFake(accessToken string) {
	suite.plaid.LinkTokenCreateFunc = func(_ context.Context, request plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error) {
		suite.Assert().Equal("user-1", request.UserID)
		suite.Assert().Equal("Budget Tracker", request.ClientName)
		suite.Assert().Equal([]string{"transactions"}, request.Products)
		suite.Assert().Equal("https://example.com/v1/webhooks/plaid", request.Webhook)
		suite.Assert().Equal(accessToken, request.AccessToken)

		return &plaid.LinkTokenResponse{
			LinkToken:  "link-sandbox-1",
			Expiration: time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC),
			RequestID:  "req-link",
		}, nil
	}
}

func (suite *ControllerSuite) TestCreateLinkToken() {
	suite.linkTokenFake("")

	recorder := suite.request(http.MethodPost, "/v1/link-token", nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var response controllers.LinkTokenResponse
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal("link-sandbox-1", response.Data.LinkToken)
	suite.Assert().True(response.Data.Expiration.Equal(time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)))
}

func (suite *ControllerSuite) TestCreateLinkTokenUpdateMode() {
	item := suite.createItem("item-1", "user-1")
	suite.linkTokenFake("access-item-1")

	recorder := suite.request(http.MethodPost, "/v1/link-token", controllers.LinkTokenCreate{ItemID: item.ID})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)
	suite.Assert().Equal(1, suite.plaid.Calls("LinkTokenCreate"))
}

func (suite *ControllerSuite) TestCreateLinkTokenErrors() {
	other := suite.createItem("item-2", "user-2")
	suite.linkTokenFake("")

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"unknown item", controllers.LinkTokenCreate{ItemID: uuid.New()}, http.StatusNotFound},
		{"item of other user", controllers.LinkTokenCreate{ItemID: other.ID}, http.StatusNotFound},
		{"broken body", `{"itemId": 12}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			recorder := suite.request(http.MethodPost, "/v1/link-token", tt.body)
			test.AssertHTTPStatus(suite.T(), &recorder, tt.status)
		})
	}

	suite.Assert().Equal(0, suite.plaid.Calls("LinkTokenCreate"))
}

func (suite *ControllerSuite) TestCreateLinkTokenPlaidFailure() {
	suite.plaid.LinkTokenCreateFunc = func(context.Context, plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error) {
		return nil, &plaid.Error{ErrorType: "INVALID_REQUEST", ErrorCode: "INVALID_FIELD", ErrorMessage: "webhook must be a valid URL"}
	}

	recorder := suite.request(http.MethodPost, "/v1/link-token", nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadGateway)
	suite.Assert().Contains(recorder.Body.String(), "INVALID_FIELD")
}
