package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/fandangolas/wallet-ledger/internal/application/mediator"
	"github.com/fandangolas/wallet-ledger/internal/eventstore"
	"github.com/fandangolas/wallet-ledger/internal/pkg/apperrors"
	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
	"github.com/fandangolas/wallet-ledger/internal/pkg/metrics"
	"github.com/fandangolas/wallet-ledger/internal/pkg/validation"
)

type depositRequest struct {
	WalletID string          `json:"walletId"`
	Amount   decimal.Decimal `json:"amount"`
}

// MakeDepositHandler implements POST /deposit per spec §6's contract:
// 201 with {success, message, balance} on completion.
func MakeDepositHandler(deps Dependencies) gin.HandlerFunc {
	med := deps.GetMediator()

	return func(c *gin.Context) {
		key := idempotencyKey(c)
		if err := validation.ValidateIdempotencyKey(key); err != nil {
			apiErr := apperrors.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		var req depositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apperrors.NewValidationError("invalid request body")
			logging.Warn("invalid JSON in deposit request", map[string]interface{}{"error": err.Error(), "ip": c.ClientIP()})
			c.JSON(apiErr.Status, apiErr)
			return
		}

		if err := validation.ValidateWalletID(req.WalletID); err != nil {
			apiErr := apperrors.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if err := validation.ValidateAmount(req.Amount); err != nil {
			apiErr := apperrors.NewInvalidAmountError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		result, replayed, err := med.Deposit(c.Request.Context(), key, req.WalletID, req.Amount)
		if err != nil {
			writeDepositError(c, req, err)
			return
		}

		if !replayed {
			metrics.RecordWalletOperation("deposit", "success")
			metrics.RecordWalletBalance(result.Balance.InexactFloat64())
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": "deposit completed",
			"balance": result.Balance,
			"_cached": replayed,
		})
	}
}

func writeDepositError(c *gin.Context, req depositRequest, err error) {
	switch {
	case errors.Is(err, mediator.ErrIdempotencyConflict):
		apiErr := apperrors.NewIdempotencyMismatchError()
		c.JSON(apiErr.Status, apiErr)
	case errors.Is(err, mediator.ErrIdempotencyInFlight):
		apiErr := apperrors.NewIdempotencyInFlightError()
		c.JSON(apiErr.Status, apiErr)
	case errors.Is(err, eventstore.ErrConflict):
		metrics.RecordWalletOperation("deposit", "conflict")
		apiErr := apperrors.NewConcurrencyConflictError()
		c.JSON(apiErr.Status, apiErr)
	default:
		metrics.RecordWalletOperation("deposit", "error")
		logging.Error("deposit failed", err, map[string]interface{}{"wallet_id": req.WalletID, "ip": c.ClientIP()})
		apiErr := apperrors.NewInternalServerError()
		c.JSON(apiErr.Status, apiErr)
	}
}
