package ledger_test

import (
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/ledger"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/shopspring/decimal"
)

func (suite *StoreSuite) TestUpsertTransactionsIdempotent() {
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	inputs := []ledger.TransactionInput{
		transaction("t-1", "a-1", "12.74"),
		transaction("t-2", "a-1", "-500"),
	}

	result, err := suite.store.UpsertTransactions(suite.ctx, item.ID, inputs)
	suite.Require().Nil(err)
	suite.Assert().Equal(ledger.UpsertResult{Created: 2}, result)

	var before []models.Transaction
	suite.Require().Nil(suite.db.Order("external_id").Find(&before).Error)

	result, err = suite.store.UpsertTransactions(suite.ctx, item.ID, inputs)
	suite.Require().Nil(err)
	suite.Assert().Equal(ledger.UpsertResult{Updated: 2}, result)

	var after []models.Transaction
	suite.Require().Nil(suite.db.Order("external_id").Find(&after).Error)

	suite.Require().Len(after, 2)
	for i := range before {
		suite.Assert().Equal(before[i].ID, after[i].ID)
		suite.Assert().True(before[i].Amount.Equal(after[i].Amount))
		suite.Assert().Equal(before[i].Name, after[i].Name)
		suite.Assert().Equal(before[i].Date, after[i].Date)
	}
}

func (suite *StoreSuite) TestUpsertTransactionsLatestValuesWin() {
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	_, err := suite.store.UpsertTransactions(suite.ctx, item.ID, []ledger.TransactionInput{transaction("t-1", "a-1", "10")})
	suite.Require().Nil(err)

	modified := transaction("t-1", "a-1", "11.50")
	modified.Pending = true
	modified.MerchantName = "Corner Store"

	_, err = suite.store.UpsertTransactions(suite.ctx, item.ID, []ledger.TransactionInput{modified})
	suite.Require().Nil(err)

	var stored []models.Transaction
	suite.Require().Nil(suite.db.Find(&stored).Error)
	suite.Require().Len(stored, 1)
	suite.Assert().True(decimal.RequireFromString("11.50").Equal(stored[0].Amount))
	suite.Assert().True(stored[0].Pending)
	suite.Assert().Equal("Corner Store", stored[0].MerchantName)
}

func (suite *StoreSuite) TestUpsertTransactionsSkipsUnknownAccount() {
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	other := suite.createItem("item-2", "user-1")
	suite.createAccounts(other, "a-2")

	result, err := suite.store.UpsertTransactions(suite.ctx, item.ID, []ledger.TransactionInput{
		transaction("t-1", "a-1", "1"),
		transaction("t-2", "missing", "2"),
		transaction("t-3", "a-2", "3"), // belongs to another item
		transaction("t-4", "a-1", "4"),
	})
	suite.Require().Nil(err)
	suite.Assert().Equal(ledger.UpsertResult{Created: 2, Skipped: 2}, result)
	suite.Assert().Equal(int64(2), suite.count(&models.Transaction{}))
}

func (suite *StoreSuite) TestUpsertTransactionsSkipsMissingID() {
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	other := suite.createItem("item-2", "user-2")
	suite.createAccounts(other, "a-2")

	_, err := suite.store.UpsertTransactions(suite.ctx, other.ID, []ledger.TransactionInput{transaction("t-9", "a-2", "9")})
	suite.Require().Nil(err)

	result, err := suite.store.UpsertTransactions(suite.ctx, item.ID, []ledger.TransactionInput{
		transaction("", "a-1", "999"),
		transaction("t-1", "a-1", "1"),
	})
	suite.Require().Nil(err)
	suite.Assert().Equal(ledger.UpsertResult{Created: 1, Skipped: 1}, result)

	var foreign models.Transaction
	suite.Require().Nil(suite.db.First(&foreign, "external_id = ?", "t-9").Error)
	suite.Assert().True(decimal.NewFromInt(9).Equal(foreign.Amount), "the transaction of another item must stay untouched")
	suite.Assert().Equal(int64(2), suite.count(&models.Transaction{}))
}

func (suite *StoreSuite) TestUpsertTransactionsCategories() {
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	groceries := models.Category{Name: "Groceries"}
	suite.Require().Nil(suite.db.Create(&groceries).Error)
	suite.Require().Nil(suite.db.Create(&models.CategoryMapping{Primary: "FOOD_AND_DRINK", Detailed: "FOOD_AND_DRINK_GROCERIES", CategoryID: groceries.ID}).Error)

	unmapped := transaction("t-2", "a-1", "5")
	unmapped.CategoryPrimary = "TRAVEL"
	unmapped.CategoryDetailed = "TRAVEL_FLIGHTS"

	_, err := suite.store.UpsertTransactions(suite.ctx, item.ID, []ledger.TransactionInput{transaction("t-1", "a-1", "1"), unmapped})
	suite.Require().Nil(err)

	var mapped models.Transaction
	suite.Require().Nil(suite.db.First(&mapped, "external_id = ?", "t-1").Error)
	suite.Require().NotNil(mapped.CategoryID)
	suite.Assert().Equal(groceries.ID, *mapped.CategoryID)

	var stored models.Transaction
	suite.Require().Nil(suite.db.First(&stored, "external_id = ?", "t-2").Error)
	suite.Assert().Nil(stored.CategoryID)
	suite.Assert().Equal("TRAVEL_FLIGHTS", stored.CategoryDetailed)
}

func (suite *StoreSuite) TestUpsertTransactionsWithoutMapper() {
	store := ledger.New(suite.db, nil)
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	result, err := store.UpsertTransactions(suite.ctx, item.ID, []ledger.TransactionInput{transaction("t-1", "a-1", "1")})
	suite.Require().Nil(err)
	suite.Assert().Equal(1, result.Created)
}

func (suite *StoreSuite) TestDeleteTransactions() {
	item := suite.createItem("item-1", "user-1")
	suite.createAccounts(item, "a-1")

	_, err := suite.store.UpsertTransactions(suite.ctx, item.ID, []ledger.TransactionInput{
		transaction("t-1", "a-1", "1"),
		transaction("t-2", "a-1", "2"),
	})
	suite.Require().Nil(err)

	deleted, err := suite.store.DeleteTransactions(suite.ctx, []string{"t-1", "unknown"})
	suite.Require().Nil(err)
	suite.Assert().Equal(int64(1), deleted)

	deleted, err = suite.store.DeleteTransactions(suite.ctx, []string{"t-1"})
	suite.Require().Nil(err)
	suite.Assert().Equal(int64(0), deleted)

	deleted, err = suite.store.DeleteTransactions(suite.ctx, nil)
	suite.Require().Nil(err)
	suite.Assert().Equal(int64(0), deleted)

	suite.Assert().Equal(int64(1), suite.count(&models.Transaction{}))
}

func (suite *StoreSuite) TestTransactionsFilter() {
	item := suite.createItem("item-1", "user-1")
	accounts := suite.createAccounts(item, "a-1", "a-2")
	other := suite.createItem("item-2", "user-2")
	suite.createAccounts(other, "a-1")

	older := transaction("t-1", "a-1", "1")
	older.Date = older.Date.AddDate(0, -1, 0)
	newer := transaction("t-3", "a-2", "3")
	newer.Date = newer.Date.AddDate(0, 0, 1)

	_, err := suite.store.UpsertTransactions(suite.ctx, item.ID, []ledger.TransactionInput{older, transaction("t-2", "a-1", "2"), newer})
	suite.Require().Nil(err)
	_, err = suite.store.UpsertTransactions(suite.ctx, other.ID, []ledger.TransactionInput{transaction("t-4", "a-1", "4")})
	suite.Require().Nil(err)

	tests := []struct {
		name     string
		filter   ledger.TransactionFilter
		total    int64
		expected []string
	}{
		{"all of user", ledger.TransactionFilter{UserID: "user-1"}, 3, []string{"t-3", "t-2", "t-1"}},
		{"by item", ledger.TransactionFilter{UserID: "user-1", ItemID: item.ID}, 3, []string{"t-3", "t-2", "t-1"}},
		{"by account", ledger.TransactionFilter{UserID: "user-1", AccountID: accounts[1].ID}, 1, []string{"t-3"}},
		{"paged", ledger.TransactionFilter{UserID: "user-1", Offset: 1, Limit: 1}, 3, []string{"t-2"}},
		{"foreign item", ledger.TransactionFilter{UserID: "user-1", ItemID: other.ID}, 0, []string{}},
		{"unknown user", ledger.TransactionFilter{UserID: "user-3"}, 0, []string{}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			transactions, total, err := suite.store.Transactions(suite.ctx, tt.filter)
			suite.Require().Nil(err)
			suite.Assert().Equal(tt.total, total)

			ids := make([]string, 0, len(transactions))
			for _, t := range transactions {
				ids = append(ids, t.ExternalID)
			}
			suite.Assert().Equal(tt.expected, ids)
		})
	}
}

func (suite *StoreSuite) TestDevices() {
	_, err := suite.store.RegisterDevice(suite.ctx, "user-1", "token-1", "ios")
	suite.Require().Nil(err)
	_, err = suite.store.RegisterDevice(suite.ctx, "user-1", "token-2", "android")
	suite.Require().Nil(err)

	// Re-registering moves the token
	device, err := suite.store.RegisterDevice(suite.ctx, "user-2", "token-2", "android")
	suite.Require().Nil(err)
	suite.Assert().Equal("user-2", device.UserID)
	suite.Assert().Equal(int64(2), suite.count(&models.DeviceToken{}))

	tokens, err := suite.store.DeviceTokens(suite.ctx, "user-1")
	suite.Require().Nil(err)
	suite.Assert().Equal([]string{"token-1"}, tokens)

	suite.Require().Nil(suite.store.DeactivateDevices(suite.ctx, []string{"token-1"}))
	tokens, err = suite.store.DeviceTokens(suite.ctx, "user-1")
	suite.Require().Nil(err)
	suite.Assert().Len(tokens, 0)

	// Registering again reactivates
	_, err = suite.store.RegisterDevice(suite.ctx, "user-1", "token-1", "ios")
	suite.Require().Nil(err)
	tokens, err = suite.store.DeviceTokens(suite.ctx, "user-1")
	suite.Require().Nil(err)
	suite.Assert().Equal([]string{"token-1"}, tokens)
}
