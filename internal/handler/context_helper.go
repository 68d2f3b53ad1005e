package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-intake-api/internal/middleware"
	"github.com/noah-isme/course-intake-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// studentScope returns the caller's student id when the caller is a student.
// Student callers only ever see or submit their own intentions.
func studentScope(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleStudent {
		return "", false
	}
	return claims.StudentID, true
}
