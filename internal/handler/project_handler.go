package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"watchdog/internal/model"
	"watchdog/internal/service"
)

type ProjectHandler struct {
	projects *service.ProjectService
	logger   *zap.Logger
}

func NewProjectHandler(projects *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

type projectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	var req projectRequest
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.projects.CreateProject(c.Request.Context(), a, req.Title, req.Description)
	if err != nil {
		respondError(c, h.logger, "CreateProject", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project_id": id})
}

// List handles GET /projects：管理员看到全部项目，其他用户只看到自己参与的
func (h *ProjectHandler) List(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}

	var (
		projects []model.Project
		err      error
	)
	if a.IsSuperAdmin() {
		projects, err = h.projects.ListProjects(c.Request.Context())
	} else {
		projects, err = h.projects.ListProjectsForUser(c.Request.Context(), a.ID)
	}
	if err != nil {
		respondError(c, h.logger, "ListProjects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.projects.GetProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "GetProject", err)
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateDetails handles PATCH /projects/:id
func (h *ProjectHandler) UpdateDetails(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req projectRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.projects.UpdateDetails(c.Request.Context(), a, id, req.Title, req.Description); err != nil {
		respondError(c, h.logger, "UpdateProjectDetails", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UpdateStatus handles PUT /projects/:id/status
func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status model.ProjectStatus `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := h.projects.UpdateStatus(c.Request.Context(), a, id, req.Status); err != nil {
		respondError(c, h.logger, "UpdateProjectStatus", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Delete handles DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.projects.DeleteProject(c.Request.Context(), a, id); err != nil {
		respondError(c, h.logger, "DeleteProject", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddMember handles POST /projects/:id/members
func (h *ProjectHandler) AddMember(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID int `json:"user_id"`
	}
	if !bindJSON(c, &req) {
		return
	}

	added, err := h.projects.AddMember(c.Request.Context(), a, id, req.UserID)
	if err != nil {
		respondError(c, h.logger, "AddMember", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// RemoveMember handles DELETE /projects/:id/members/:userID
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userID")
	if !ok {
		return
	}

	removed, err := h.projects.RemoveMember(c.Request.Context(), a, id, userID)
	if err != nil {
		respondError(c, h.logger, "RemoveMember", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
