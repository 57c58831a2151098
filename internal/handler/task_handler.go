package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"watchdog/internal/model"
	"watchdog/internal/service"
	"watchdog/pkg/logger"
)

type TaskHandler struct {
	tasks       *service.TaskService
	subtasks    *service.SubtaskService
	progression *service.ProgressionService
	logger      *zap.Logger
}

func NewTaskHandler(tasks *service.TaskService, subtasks *service.SubtaskService, progression *service.ProgressionService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, subtasks: subtasks, progression: progression, logger: logger}
}

// Create handles POST /projects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Description    string `json:"description"`
		AssignedUserID int    `json:"assigned_user_id"`
	}
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.tasks.CreateTask(c.Request.Context(), a, req.Description, projectID, req.AssignedUserID)
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task_id": id})
}

// ListByProject handles GET /projects/:id/tasks
func (h *TaskHandler) ListByProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	tasks, err := h.tasks.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// Get handles GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "GetTask", err)
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// Update handles PATCH /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Remarks            *string `json:"remarks"`
		PercentageComplete *int    `json:"percentage_complete"`
		AssignedUserID     *int    `json:"assigned_user_id"`
	}
	if !bindJSON(c, &req) {
		return
	}

	err := h.tasks.UpdateTask(c.Request.Context(), a, id, service.TaskUpdate{
		Remarks:        req.Remarks,
		Percentage:     req.PercentageComplete,
		AssignedUserID: req.AssignedUserID,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Delete handles DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(c.Request.Context(), a, id); err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateSubtask handles POST /tasks/:id/subtasks
func (h *TaskHandler) CreateSubtask(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.subtasks.CreateSubtask(c.Request.Context(), a, req.Description, taskID)
	if err != nil {
		if id != 0 {
			// 子任务已写入，只是父任务进度没有更新
			logger.WithTrace(c.Request.Context(), h.logger).Error("CreateSubtask: roll-up failed",
				zap.Int("subtask_id", id),
				zap.Error(err),
			)
			c.JSON(StatusFor(err), gin.H{"error": service.PublicMessage(err), "subtask_id": id})
			return
		}
		respondError(c, h.logger, "CreateSubtask", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subtask_id": id})
}

// UpdateSubtask handles PATCH /subtasks/:id
func (h *TaskHandler) UpdateSubtask(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Description *string              `json:"description"`
		Status      *model.SubTaskStatus `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}

	err := h.subtasks.UpdateSubtask(c.Request.Context(), a, id, service.SubtaskUpdate{
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateSubtask", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteSubtask handles DELETE /subtasks/:id
func (h *TaskHandler) DeleteSubtask(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.subtasks.DeleteSubtask(c.Request.Context(), a, id); err != nil {
		respondError(c, h.logger, "DeleteSubtask", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListProgress handles GET /tasks/:id/progress
func (h *TaskHandler) ListProgress(c *gin.Context) {
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.progression.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, h.logger, "ListProgress", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostProgress handles POST /tasks/:id/progress
func (h *TaskHandler) PostProgress(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.progression.Append(c.Request.Context(), a, taskID, req.Content)
	if err != nil {
		respondError(c, h.logger, "PostProgress", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message_id": id})
}
