package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/httputil"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/ledger"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
)

// TransactionQueryFilter contains the fields that transactions can be
// filtered with.
type TransactionQueryFilter struct {
	Item    string `form:"item"`    // ID of the item
	Account string `form:"account"` // ID of the account
	Offset  uint   `form:"offset"`  // The offset of the first transaction returned. Defaults to 0.
	Limit   int    `form:"limit"`   // Maximum number of transactions to return. Defaults to 50.
}

type TransactionListResponse struct {
	Data       []models.Transaction `json:"data"`
	Pagination *Pagination          `json:"pagination"`
}

func (co Controller) RegisterTransactionRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsGet)
	r.GET("", co.GetTransactions)
}

// @Summary		Get transactions
// @Description	Returns the transactions of the user, newest first
// @Tags			Transactions
// @Produce		json
// @Success		200	{object}	TransactionListResponse
// @Failure		400	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Param			item		query		string	false	"Filter by item ID"
// @Param			account		query		string	false	"Filter by account ID"
// @Param			offset		query		uint	false	"The offset of the first transaction returned. Defaults to 0."
// @Param			limit		query		int		false	"Maximum number of transactions to return. Defaults to 50."
// @Router			/v1/transactions [get]
func (co Controller) GetTransactions(c *gin.Context) {
	var query TransactionQueryFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		abort(c, httputil.ErrInvalidQuery)
		return
	}

	itemID, err := httputil.UUIDFromString(query.Item)
	if err != nil {
		abort(c, err)
		return
	}

	accountID, err := httputil.UUIDFromString(query.Account)
	if err != nil {
		abort(c, err)
		return
	}

	limit := 50
	if c.Request.URL.Query().Has("limit") {
		limit = query.Limit
	}

	transactions, total, err := co.Store.Transactions(c.Request.Context(), ledger.TransactionFilter{
		UserID:    userID(c),
		ItemID:    itemID,
		AccountID: accountID,
		Offset:    int(query.Offset),
		Limit:     limit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	if transactions == nil {
		transactions = make([]models.Transaction, 0)
	}

	c.JSON(http.StatusOK, TransactionListResponse{
		Data: transactions,
		Pagination: &Pagination{
			Count:  len(transactions),
			Total:  total,
			Offset: query.Offset,
			Limit:  limit,
		},
	})
}
