package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/unitir-dev/syllabus-api/internal/middleware"
	"github.com/unitir-dev/syllabus-api/internal/models"
)

func userFromContext(c *gin.Context) *models.UserInfo {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.UserInfo)
	if !ok {
		return nil
	}
	return user
}

func tokenFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextTokenKey)
	if !exists {
		return ""
	}
	token, _ := value.(string)
	return token
}
