package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/annel0/terragen/internal/middleware"
	"github.com/annel0/terragen/internal/terrain"
	"github.com/gin-gonic/gin"
)

// corsMiddleware разрешает запросы из браузерных инструментов
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// statusFor сопоставляет ошибку сервиса HTTP-статусу
func statusFor(err error) int {
	switch {
	case terrain.IsNotFound(err):
		return http.StatusNotFound
	case terrain.IsInvalid(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку в едином формате
func (rs *RestServer) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		if rs.logger != nil {
			rs.logger.Error("%s %s trace=%s: %v", c.Request.Method, c.FullPath(), middleware.TraceID(c), err)
		}
		message = "Внутренняя ошибка сервера"
	}
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: message})
}
