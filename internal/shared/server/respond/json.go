package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes payload as a JSON body with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes payload with a 200 status.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Accepted writes payload with a 202 status, the shape used by the
// asynchronous upload and chat endpoints.
func Accepted(c *gin.Context, payload any) {
	JSON(c, http.StatusAccepted, payload)
}
