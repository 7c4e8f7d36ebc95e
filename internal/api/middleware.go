package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reliefnet/internal/auth"
)

const claimsKey = "claims"

// authRequired gates report-creation and account routes behind a bearer
// token. The websocket alert channel is intentionally not gated.
func (h *Handler) authRequired(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if header == "" || token == header {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

func claimsFrom(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsKey).(*auth.Claims)
}
