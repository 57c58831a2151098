package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"watchdog/internal/service"
	"watchdog/pkg/rbac"
)

type UserHandler struct {
	users  *service.UserService
	tasks  *service.TaskService
	logger *zap.Logger
}

func NewUserHandler(users *service.UserService, tasks *service.TaskService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, tasks: tasks, logger: logger}
}

// Login handles POST /login
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	token, u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": service.PublicMessage(err)})
			return
		}
		respondError(c, h.logger, "Login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  u,
	})
}

// Register handles POST /users
func (h *UserHandler) Register(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	var req struct {
		Username string    `json:"username"`
		Email    string    `json:"email"`
		Password string    `json:"password"`
		Role     rbac.Role `json:"role"`
	}
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.users.Register(c.Request.Context(), a, req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		respondError(c, h.logger, "Register", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": id})
}

// List handles GET /users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListUsers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ListTasks handles GET /users/:id/tasks
func (h *UserHandler) ListTasks(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	tasks, err := h.tasks.ListByAssignedUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "ListUserTasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
