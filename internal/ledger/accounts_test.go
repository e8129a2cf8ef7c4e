package ledger_test

import (
	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/ledger"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/shopspring/decimal"
)

func (suite *StoreSuite) TestUpsertAccountsIdempotent() {
	item := suite.createItem("item-1", "user-1")

	first := suite.createAccounts(item, "a-1", "a-2")
	second := suite.createAccounts(item, "a-1", "a-2")

	suite.Require().Len(second, 2)
	suite.Assert().Equal(first[0].ID, second[0].ID)
	suite.Assert().Equal(first[1].ID, second[1].ID)
	suite.Assert().Equal(int64(2), suite.count(&models.Account{}))

	items, err := suite.store.ItemsForUser(suite.ctx, "user-1")
	suite.Require().Nil(err)
	suite.Assert().Len(items[0].Accounts, 2, "accounts must not be duplicated on the item")
}

func (suite *StoreSuite) TestUpsertAccountsUpdatesBalances() {
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	accounts, err := suite.store.UpsertAccounts(suite.ctx, item.ID, []ledger.AccountInput{
		{
			ExternalID:       "a-1",
			Name:             "Renamed",
			AvailableBalance: decimal.NewNullDecimal(decimal.RequireFromString("42.10")),
			CurrencyCode:     "eur",
		},
	})
	suite.Require().Nil(err)
	suite.Require().Len(accounts, 1)

	stored, err := suite.store.AccountsForItem(suite.ctx, item.ID)
	suite.Require().Nil(err)
	suite.Require().Len(stored, 1)
	suite.Assert().Equal("Renamed", stored[0].Name)
	suite.Assert().True(stored[0].AvailableBalance.Valid)
	suite.Assert().True(decimal.RequireFromString("42.10").Equal(stored[0].AvailableBalance.Decimal))
	suite.Assert().False(stored[0].CurrentBalance.Valid, "balance reported as null must be stored as null")
	suite.Assert().Equal("EUR", stored[0].CurrencyCode)
}

func (suite *StoreSuite) TestUpsertAccountsSameExternalIDOtherItem() {
	item := suite.createItem("item-1", "user-1")
	other := suite.createItem("item-2", "user-1")

	suite.createAccounts(item, "a-1")
	suite.createAccounts(other, "a-1")

	suite.Assert().Equal(int64(2), suite.count(&models.Account{}))
}

func (suite *StoreSuite) TestUpsertAccountsUnknownItem() {
	_, err := suite.store.UpsertAccounts(suite.ctx, uuid.New(), []ledger.AccountInput{{ExternalID: "a-1"}})
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *StoreSuite) TestUpsertAccountsSkipsMissingID() {
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	accounts, err := suite.store.UpsertAccounts(suite.ctx, item.ID, []ledger.AccountInput{{ExternalID: "", Name: "Broken"}})
	suite.Require().Nil(err)
	suite.Assert().Len(accounts, 0)

	stored, err := suite.store.AccountsForItem(suite.ctx, item.ID)
	suite.Require().Nil(err)
	suite.Require().Len(stored, 1)
	suite.Assert().Equal("a-1", stored[0].ExternalID)
	suite.Assert().Equal("Account a-1", stored[0].Name)
}
