package controllers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/controllers"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/morsecodescott/budget-tracker-app-sub000/test"
)

func ptr[T any](v T) *T {
	return &v
}

func (suite *ControllerSuite) linkFakes() {
	suite.plaid.ItemPublicTokenExchangeFunc = func(_ context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
		suite.Assert().Equal("public-sandbox-1", publicToken)
		return &plaid.ExchangeResponse{AccessToken: "access-sandbox-1", ItemID: "item-new", RequestID: "req-exchange"}, nil
	}
	suite.plaid.ItemGetFunc = func(context.Context, string) (*plaid.ItemGetResponse, error) {
		return &plaid.ItemGetResponse{Item: plaid.Item{ItemID: "item-new", InstitutionID: ptr("ins_109508")}}, nil
	}
	suite.plaid.InstitutionsGetByIDFunc = func(_ context.Context, id string, countryCodes []string) (*plaid.InstitutionResponse, error) {
		suite.Assert().Equal([]string{"US"}, countryCodes)
		return &plaid.InstitutionResponse{Institution: plaid.Institution{InstitutionID: id, Name: "First Platypus Bank"}}, nil
	}
}

func (suite *ControllerSuite) TestRequireUser() {
	recorder := suite.request(http.MethodGet, "/v1/items", nil, map[string]string{})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusUnauthorized)
}

func (suite *ControllerSuite) TestCreateItem() {
	suite.linkFakes()

	recorder := suite.request(http.MethodPost, "/v1/items", controllers.ItemCreate{PublicToken: "public-sandbox-1"})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusCreated)
	suite.Assert().NotContains(recorder.Body.String(), "access-sandbox-1")

	var response controllers.ItemResponse
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal("item-new", response.Data.ExternalID)
	suite.Assert().Equal("user-1", response.Data.UserID)
	suite.Assert().Equal("ins_109508", response.Data.InstitutionID)
	suite.Assert().Equal("First Platypus Bank", response.Data.InstitutionName)
	suite.Assert().Equal(models.ItemStatusGood, response.Data.Status)
	suite.Require().Len(response.Data.Accounts, 1)
	suite.Assert().Equal("a-1", response.Data.Accounts[0].ExternalID)

	// The initial sync runs in the background
	suite.dispatcher.Wait()
	suite.Assert().Equal(int64(1), suite.countTransactions())

	var events []models.APIEvent
	suite.Require().Nil(suite.db.Find(&events).Error)
	suite.Assert().NotEmpty(events)
	for _, e := range events {
		suite.Assert().NotContains(e.Arguments, "public-sandbox-1")
		suite.Assert().NotContains(e.Arguments, "access-sandbox-1")
	}
}

func (suite *ControllerSuite) TestCreateItemWithoutInstitution() {
	suite.linkFakes()
	suite.plaid.ItemGetFunc = func(context.Context, string) (*plaid.ItemGetResponse, error) {
		return nil, &plaid.Error{ErrorType: "API_ERROR", ErrorCode: "INTERNAL_SERVER_ERROR"}
	}

	recorder := suite.request(http.MethodPost, "/v1/items", controllers.ItemCreate{PublicToken: "public-sandbox-1"})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusCreated)

	var response controllers.ItemResponse
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Equal("", response.Data.InstitutionName)
}

func (suite *ControllerSuite) TestCreateItemErrors() {
	suite.linkFakes()

	recorder := suite.request(http.MethodPost, "/v1/items", `{}`)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)
	suite.Assert().Contains(recorder.Body.String(), "PublicToken is required")

	suite.plaid.ItemPublicTokenExchangeFunc = func(context.Context, string) (*plaid.ExchangeResponse, error) {
		return nil, &plaid.Error{ErrorType: "INVALID_INPUT", ErrorCode: "INVALID_PUBLIC_TOKEN", ErrorMessage: "provided public token is expired"}
	}
	recorder = suite.request(http.MethodPost, "/v1/items", controllers.ItemCreate{PublicToken: "public-sandbox-1"})
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadGateway)
	suite.Assert().Contains(recorder.Body.String(), "INVALID_PUBLIC_TOKEN")

	var count int64
	suite.Require().Nil(suite.db.Model(&models.Item{}).Count(&count).Error)
	suite.Assert().Equal(int64(0), count)
}

func (suite *ControllerSuite) TestGetItems() {
	own := suite.createItem("item-1", "user-1")
	suite.createItem("item-2", "user-2")

	recorder := suite.request(http.MethodGet, "/v1/items", nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var list controllers.ItemListResponse
	test.DecodeResponse(suite.T(), &recorder, &list)
	suite.Require().Len(list.Data, 1)
	suite.Assert().Equal(own.ID, list.Data[0].ID)
	suite.Assert().Len(list.Data[0].Accounts, 1)

	recorder = suite.request(http.MethodGet, "/v1/items/"+own.ID.String(), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var item controllers.ItemResponse
	test.DecodeResponse(suite.T(), &recorder, &item)
	suite.Assert().Equal("item-1", item.Data.ExternalID)
}

func (suite *ControllerSuite) TestGetItemErrors() {
	other := suite.createItem("item-2", "user-2")

	tests := []struct {
		path   string
		status int
	}{
		{"/v1/items/" + uuid.New().String(), http.StatusNotFound},
		{"/v1/items/" + other.ID.String(), http.StatusNotFound},
		{"/v1/items/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		recorder := suite.request(http.MethodGet, tt.path, nil)
		test.AssertHTTPStatus(suite.T(), &recorder, tt.status)
	}
}

func (suite *ControllerSuite) TestDeleteItem() {
	item := suite.createItem("item-1", "user-1")

	suite.plaid.ItemRemoveFunc = func(_ context.Context, accessToken string) (*plaid.ItemRemoveResponse, error) {
		suite.Assert().Equal("access-item-1", accessToken)
		return &plaid.ItemRemoveResponse{RequestID: "req-remove"}, nil
	}

	recorder := suite.request(http.MethodDelete, "/v1/items/"+item.ID.String(), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNoContent)
	suite.Assert().Equal(1, suite.plaid.Calls("ItemRemove"))

	_, err := suite.store.ItemByExternalID(suite.ctx, "item-1")
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *ControllerSuite) TestDeleteItemUnknownAtPlaid() {
	item := suite.createItem("item-1", "user-1")

	suite.plaid.ItemRemoveFunc = func(context.Context, string) (*plaid.ItemRemoveResponse, error) {
		return nil, &plaid.Error{ErrorType: "ITEM_ERROR", ErrorCode: plaid.CodeItemNotFound}
	}

	recorder := suite.request(http.MethodDelete, "/v1/items/"+item.ID.String(), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNoContent)
}

func (suite *ControllerSuite) TestDeleteItemPlaidFailure() {
	item := suite.createItem("item-1", "user-1")

	suite.plaid.ItemRemoveFunc = func(context.Context, string) (*plaid.ItemRemoveResponse, error) {
		return nil, errors.New("connection reset by peer")
	}

	recorder := suite.request(http.MethodDelete, "/v1/items/"+item.ID.String(), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadGateway)

	_, err := suite.store.ItemByExternalID(suite.ctx, "item-1")
	suite.Assert().Nil(err, "the item is kept when Plaid could not revoke it")
}

func (suite *ControllerSuite) TestSyncItem() {
	item := suite.createItem("item-1", "user-1")
	session := suite.hub.Subscribe("user-1")

	recorder := suite.request(http.MethodPost, fmt.Sprintf("/v1/items/%s/sync", item.ID), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)
	suite.Assert().Contains(recorder.Body.String(), `"addedCount":1`)
	suite.Assert().Equal(int64(1), suite.countTransactions())

	suite.Require().Len(session.Events(), 1)
}

func (suite *ControllerSuite) TestSyncItemAborted() {
	item := suite.createItem("item-1", "user-1")
	session := suite.hub.Subscribe("user-1")

	suite.plaid.TransactionsSyncFunc = func(context.Context, string, string, int) (*plaid.TransactionsSyncResponse, error) {
		return nil, &plaid.Error{ErrorType: "RATE_LIMIT_EXCEEDED", ErrorCode: plaid.CodeRateLimitExceeded}
	}

	recorder := suite.request(http.MethodPost, fmt.Sprintf("/v1/items/%s/sync", item.ID), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadGateway)
	suite.Assert().Len(session.Events(), 0)
}

func (suite *ControllerSuite) TestSyncItemInProgress() {
	item := suite.createItem("item-1", "user-1")

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	next := suite.plaid.TransactionsSyncFunc
	suite.plaid.TransactionsSyncFunc = func(ctx context.Context, accessToken, cursor string, count int) (*plaid.TransactionsSyncResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return next(ctx, accessToken, cursor, count)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = suite.engine.Sync(suite.ctx, item.ExternalID)
	}()
	<-started

	recorder := suite.request(http.MethodPost, fmt.Sprintf("/v1/items/%s/sync", item.ID), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusConflict)

	close(release)
	<-done
}

func (suite *ControllerSuite) TestGetItemEvents() {
	item := suite.createItem("item-1", "user-1")

	recorder := suite.request(http.MethodPost, fmt.Sprintf("/v1/items/%s/sync", item.ID), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	recorder = suite.request(http.MethodGet, fmt.Sprintf("/v1/items/%s/events", item.ID), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)

	var response controllers.EventListResponse
	test.DecodeResponse(suite.T(), &recorder, &response)

	// Request and response for transactionsSync and accountsGet
	suite.Require().Len(response.Data, 4)
	for _, e := range response.Data {
		suite.Assert().Equal(models.EventKindAPI, e.Kind)
		suite.Assert().False(strings.Contains(e.Arguments, "access-item-1"))
	}

	recorder = suite.request(http.MethodGet, fmt.Sprintf("/v1/items/%s/events?limit=1", item.ID), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusOK)
	test.DecodeResponse(suite.T(), &recorder, &response)
	suite.Assert().Len(response.Data, 1)

	recorder = suite.request(http.MethodGet, fmt.Sprintf("/v1/items/%s/events?limit=many", item.ID), nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusBadRequest)
}
