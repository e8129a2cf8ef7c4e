package models_test

import (
	"time"

	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/stretchr/testify/assert"
)

func (suite *TestSuiteStandard) TestModelTimeUTC() {
	tz, _ := time.LoadLocation("Europe/Berlin")

	model := models.DefaultModel{
		Timestamps: models.Timestamps{
			CreatedAt: time.Date(2000, 1, 2, 3, 4, 5, 6, tz),
			UpdatedAt: time.Date(2001, 2, 3, 4, 5, 6, 7, tz),
		},
	}

	err := model.AfterFind(suite.db)
	if err != nil {
		assert.Fail(suite.T(), "model.AfterFind failed")
	}

	assert.Equal(suite.T(), time.UTC, model.CreatedAt.Location(), "Timezone for model is not UTC")
	assert.Equal(suite.T(), time.UTC, model.UpdatedAt.Location(), "Timezone for model is not UTC")
}

func (suite *TestSuiteStandard) TestModelBeforeCreateKeepsID() {
	id := uuid.New()
	model := models.DefaultModel{ID: id}

	suite.Require().Nil(model.BeforeCreate(suite.db))
	suite.Assert().Equal(id, model.ID)

	model = models.DefaultModel{}
	suite.Require().Nil(model.BeforeCreate(suite.db))
	suite.Assert().NotEqual(uuid.Nil, model.ID)
}
