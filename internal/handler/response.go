package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"watchdog/internal/actor"
	"watchdog/internal/service"
	"watchdog/pkg/logger"
)

// StatusFor 把错误类别映射为 HTTP 状态码
func StatusFor(err error) int {
	switch service.KindOf(err) {
	case service.ErrValidation:
		return http.StatusBadRequest
	case service.ErrNotFound:
		return http.StatusNotFound
	case service.ErrUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, log *zap.Logger, name string, err error) {
	status := StatusFor(err)
	l := logger.WithTrace(c.Request.Context(), log)
	if status >= http.StatusInternalServerError {
		l.Error(name+": failed", zap.Error(err))
	} else {
		l.Warn(name+": rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": service.PublicMessage(err)})
}

// currentActor 读取认证中间件放入的 actor
func currentActor(c *gin.Context) (actor.Actor, bool) {
	a, err := actor.FromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return actor.Actor{}, false
	}
	return a, true
}

func paramID(c *gin.Context, name string) (int, bool) {
	raw := c.Param(name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}
