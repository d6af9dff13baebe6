package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Ping implements GET /ping per spec §6. commandService/queryService
// report which logical side is answering — both are the same process
// here, since the HTTP edge serves both command and query endpoints.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"commandService": "up",
		"queryService":   "up",
	})
}
