package models_test

import (
	"time"

	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/stretchr/testify/assert"
)

func (suite *TestSuiteStandard) TestTransactionFindTimeUTC() {
	tz, _ := time.LoadLocation("Europe/Berlin")

	transaction := models.Transaction{
		Date: time.Date(2000, 1, 2, 3, 4, 5, 6, tz),
	}

	err := transaction.AfterFind(suite.db)
	if err != nil {
		assert.Fail(suite.T(), "transaction.AfterFind failed")
	}

	assert.Equal(suite.T(), time.UTC, transaction.Date.Location(), "Timezone for model is not UTC")
}

func (suite *TestSuiteStandard) TestTransactionBeforeSave() {
	nilID := uuid.Nil
	transaction := models.Transaction{
		Name:         "  Uber 063015 SF**POOL** ",
		MerchantName: "\tUber",
		CategoryID:   &nilID,
	}

	err := transaction.BeforeSave(suite.db)
	suite.Require().Nil(err)

	suite.Assert().Equal("Uber 063015 SF**POOL**", transaction.Name)
	suite.Assert().Equal("Uber", transaction.MerchantName)
	suite.Assert().Nil(transaction.CategoryID, "nil UUID category must be stored as NULL")
}
