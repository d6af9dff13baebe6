package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/fandangolas/wallet-ledger/internal/application/mediator"
	"github.com/fandangolas/wallet-ledger/internal/pkg/apperrors"
	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
	"github.com/fandangolas/wallet-ledger/internal/pkg/metrics"
	"github.com/fandangolas/wallet-ledger/internal/pkg/validation"
	"github.com/fandangolas/wallet-ledger/internal/saga"
)

type transferRequest struct {
	FromWalletID string          `json:"fromWalletId"`
	ToWalletID   string          `json:"toWalletId"`
	Amount       decimal.Decimal `json:"amount"`
}

// MakeTransferHandler implements POST /transfer per spec §6: 201 with
// {success, message, fromBalance, toBalance}.
func MakeTransferHandler(deps Dependencies) gin.HandlerFunc {
	med := deps.GetMediator()

	return func(c *gin.Context) {
		key := idempotencyKey(c)
		if err := validation.ValidateIdempotencyKey(key); err != nil {
			apiErr := apperrors.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		var req transferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apperrors.NewValidationError("invalid request body")
			logging.Warn("invalid JSON in transfer request", map[string]interface{}{"error": err.Error(), "ip": c.ClientIP()})
			c.JSON(apiErr.Status, apiErr)
			return
		}

		if err := validation.ValidateTransfer(req.FromWalletID, req.ToWalletID, req.Amount); err != nil {
			apiErr := apperrors.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		result, replayed, err := med.Transfer(c.Request.Context(), key, req.FromWalletID, req.ToWalletID, req.Amount)
		if err != nil {
			writeTransferError(c, req, err)
			return
		}

		if !replayed {
			if result.Success {
				metrics.RecordWalletOperation("transfer", "success")
				metrics.RecordTransferAmount(req.Amount.InexactFloat64())
				metrics.RecordWalletBalance(result.FromBalance.InexactFloat64())
				metrics.RecordWalletBalance(result.ToBalance.InexactFloat64())
			} else {
				metrics.RecordWalletOperation("transfer", "failed")
			}
		}

		message := result.Message
		if message == "" && result.Success {
			message = "transfer completed"
		}

		c.JSON(http.StatusCreated, gin.H{
			"success":     result.Success,
			"message":     message,
			"fromBalance": result.FromBalance,
			"toBalance":   result.ToBalance,
			"_cached":     replayed,
		})
	}
}

func writeTransferError(c *gin.Context, req transferRequest, err error) {
	switch {
	case errors.Is(err, mediator.ErrIdempotencyConflict):
		apiErr := apperrors.NewIdempotencyMismatchError()
		c.JSON(apiErr.Status, apiErr)
	case errors.Is(err, mediator.ErrIdempotencyInFlight):
		apiErr := apperrors.NewIdempotencyInFlightError()
		c.JSON(apiErr.Status, apiErr)
	case errors.Is(err, saga.ErrCompensationFailed):
		metrics.RecordWalletOperation("transfer", "critical_compensation_failure")
		logging.Error("transfer compensation failed, saga stuck", err, map[string]interface{}{
			"from_wallet_id": req.FromWalletID, "to_wallet_id": req.ToWalletID,
		})
		apiErr := apperrors.NewCriticalCompensationError(err.Error())
		c.JSON(apiErr.Status, apiErr)
	default:
		metrics.RecordWalletOperation("transfer", "error")
		logging.Error("transfer failed", err, map[string]interface{}{
			"from_wallet_id": req.FromWalletID, "to_wallet_id": req.ToWalletID, "ip": c.ClientIP(),
		})
		apiErr := apperrors.NewInternalServerError()
		c.JSON(apiErr.Status, apiErr)
	}
}
