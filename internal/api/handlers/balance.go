package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/fandangolas/wallet-ledger/internal/pkg/apperrors"
	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
	"github.com/fandangolas/wallet-ledger/internal/pkg/validation"
)

// MakeBalanceHandler implements GET /balance/{walletId}. It reads the
// (eventually consistent) projection rather than replaying the log,
// the query side's whole reason for existing.
func MakeBalanceHandler(deps Dependencies) gin.HandlerFunc {
	store := deps.GetProjectionStore()

	return func(c *gin.Context) {
		walletID := c.Param("walletId")
		if err := validation.ValidateWalletID(walletID); err != nil {
			apiErr := apperrors.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		projection, err := store.Balance(c.Request.Context(), walletID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				apiErr := apperrors.NewWalletNotFoundError()
				c.JSON(apiErr.Status, apiErr)
				return
			}
			logging.Error("balance lookup failed", err, map[string]interface{}{"wallet_id": walletID})
			apiErr := apperrors.NewInternalServerError()
			c.JSON(apiErr.Status, apiErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":        projection.WalletID,
			"balance":   projection.Balance,
			"createdAt": projection.CreatedAt,
			"updatedAt": projection.UpdatedAt,
		})
	}
}
