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

type withdrawRequest struct {
	WalletID string          `json:"walletId"`
	Amount   decimal.Decimal `json:"amount"`
}

// MakeWithdrawHandler implements POST /withdraw. Insufficient funds is
// a successful command per spec §9 open question #3, resolved here as
// 201 with success:false rather than a 4xx — the request was valid and
// fully processed, it just didn't change the balance.
func MakeWithdrawHandler(deps Dependencies) gin.HandlerFunc {
	med := deps.GetMediator()

	return func(c *gin.Context) {
		key := idempotencyKey(c)
		if err := validation.ValidateIdempotencyKey(key); err != nil {
			apiErr := apperrors.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		var req withdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apperrors.NewValidationError("invalid request body")
			logging.Warn("invalid JSON in withdraw request", map[string]interface{}{"error": err.Error(), "ip": c.ClientIP()})
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

		result, replayed, err := med.Withdraw(c.Request.Context(), key, req.WalletID, req.Amount)
		if err != nil {
			writeWithdrawError(c, req, err)
			return
		}

		if !replayed {
			if result.Success {
				metrics.RecordWalletOperation("withdraw", "success")
				metrics.RecordWalletBalance(result.Balance.InexactFloat64())
			} else {
				metrics.RecordWalletOperation("withdraw", "insufficient_funds")
			}
		}

		message := result.Message
		if message == "" && result.Success {
			message = "withdrawal completed"
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": result.Success,
			"message": message,
			"balance": result.Balance,
			"_cached": replayed,
		})
	}
}

func writeWithdrawError(c *gin.Context, req withdrawRequest, err error) {
	switch {
	case errors.Is(err, mediator.ErrIdempotencyConflict):
		apiErr := apperrors.NewIdempotencyMismatchError()
		c.JSON(apiErr.Status, apiErr)
	case errors.Is(err, mediator.ErrIdempotencyInFlight):
		apiErr := apperrors.NewIdempotencyInFlightError()
		c.JSON(apiErr.Status, apiErr)
	case errors.Is(err, eventstore.ErrConflict):
		metrics.RecordWalletOperation("withdraw", "conflict")
		apiErr := apperrors.NewConcurrencyConflictError()
		c.JSON(apiErr.Status, apiErr)
	default:
		metrics.RecordWalletOperation("withdraw", "error")
		logging.Error("withdraw failed", err, map[string]interface{}{"wallet_id": req.WalletID, "ip": c.ClientIP()})
		apiErr := apperrors.NewInternalServerError()
		c.JSON(apiErr.Status, apiErr)
	}
}
