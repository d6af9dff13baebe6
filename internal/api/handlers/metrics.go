package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fandangolas/wallet-ledger/internal/pkg/metrics"
)

// GetRecentRequests returns the in-memory recent-requests ring buffer
// as JSON, a human-facing debug view independent of /metrics' Prometheus
// exposition format.
func GetRecentRequests(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.List())
}
