package handlers

import "github.com/gin-gonic/gin"

const idempotencyKeyHeader = "X-Idempotency-Key"

// idempotencyKey reads the required idempotency key header, grounded
// on the teacher's GetEventPublisher context accessor pattern.
func idempotencyKey(c *gin.Context) string {
	return c.GetHeader(idempotencyKeyHeader)
}
