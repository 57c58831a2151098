package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"watchdog/internal/handler"
	"watchdog/pkg/otel"
)

// ReadinessCheck 返回 nil 表示依赖可用
type ReadinessCheck func(ctx context.Context) error

type Handlers struct {
	Users    *handler.UserHandler
	Projects *handler.ProjectHandler
	Tasks    *handler.TaskHandler
	Timeline *handler.TimelineHandler
	// Admin 为 nil 时不注册 outbox 运维接口（内存存储模式）
	Admin *handler.AdminHandler
}

func NewRouter(h Handlers, jwtSecret string, ready ReadinessCheck, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(RequestLogger(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/login", h.Users.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/users", h.Users.Register)
		auth.GET("/users", h.Users.List)
		auth.GET("/users/:id/tasks", h.Users.ListTasks)

		auth.POST("/projects", h.Projects.Create)
		auth.GET("/projects", h.Projects.List)
		auth.GET("/projects/:id", h.Projects.Get)
		auth.PATCH("/projects/:id", h.Projects.UpdateDetails)
		auth.PUT("/projects/:id/status", h.Projects.UpdateStatus)
		auth.DELETE("/projects/:id", h.Projects.Delete)
		auth.POST("/projects/:id/members", h.Projects.AddMember)
		auth.DELETE("/projects/:id/members/:userID", h.Projects.RemoveMember)

		auth.GET("/projects/:id/timeline", h.Timeline.List)
		auth.POST("/projects/:id/timeline", h.Timeline.Post)
		auth.POST("/timeline/:id/replies", h.Timeline.Reply)
		auth.GET("/timeline/:id/replies", h.Timeline.ListReplies)
		auth.PUT("/timeline/:id/classification", h.Timeline.Reclassify)

		auth.POST("/projects/:id/tasks", h.Tasks.Create)
		auth.GET("/projects/:id/tasks", h.Tasks.ListByProject)
		auth.GET("/tasks/:id", h.Tasks.Get)
		auth.PATCH("/tasks/:id", h.Tasks.Update)
		auth.DELETE("/tasks/:id", h.Tasks.Delete)
		auth.POST("/tasks/:id/subtasks", h.Tasks.CreateSubtask)
		auth.PATCH("/subtasks/:id", h.Tasks.UpdateSubtask)
		auth.DELETE("/subtasks/:id", h.Tasks.DeleteSubtask)
		auth.GET("/tasks/:id/progress", h.Tasks.ListProgress)
		auth.POST("/tasks/:id/progress", h.Tasks.PostProgress)

		if h.Admin != nil {
			auth.POST("/admin/outbox/replay", h.Admin.ReplayOutboxEvent)
			auth.POST("/admin/outbox/replay-failed", h.Admin.ReplayFailedEvents)
		}
	}

	return r
}
