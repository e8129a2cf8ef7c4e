package controllers_test

import (
	"net/http"

	"github.com/morsecodescott/budget-tracker-app-sub000/test"
)

func (suite *ControllerSuite) TestGetHealthz() {
	recorder := suite.request(http.MethodGet, "/healthz", nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusNoContent)
}

func (suite *ControllerSuite) TestGetHealthzDatabaseClosed() {
	test.CloseDB(suite.T(), suite.db)

	recorder := suite.request(http.MethodGet, "/healthz", nil)
	test.AssertHTTPStatus(suite.T(), &recorder, http.StatusInternalServerError)
}
