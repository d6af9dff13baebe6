package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fandangolas/wallet-ledger/internal/pkg/apperrors"
	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
	"github.com/fandangolas/wallet-ledger/internal/pkg/validation"
)

const defaultTransactionLimit = 50

// MakeTransactionsHandler implements GET /transactions/{walletId},
// returning the denormalized transaction history projection.
func MakeTransactionsHandler(deps Dependencies) gin.HandlerFunc {
	store := deps.GetProjectionStore()

	return func(c *gin.Context) {
		walletID := c.Param("walletId")
		if err := validation.ValidateWalletID(walletID); err != nil {
			apiErr := apperrors.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		limit := defaultTransactionLimit
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		transactions, err := store.Transactions(c.Request.Context(), walletID, limit)
		if err != nil {
			logging.Error("transaction history lookup failed", err, map[string]interface{}{"wallet_id": walletID})
			apiErr := apperrors.NewInternalServerError()
			c.JSON(apiErr.Status, apiErr)
			return
		}

		c.JSON(http.StatusOK, transactions)
	}
}
