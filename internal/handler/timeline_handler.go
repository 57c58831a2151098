package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"watchdog/internal/model"
	"watchdog/internal/service"
)

type TimelineHandler struct {
	audit  *service.AuditTrailService
	logger *zap.Logger
}

func NewTimelineHandler(audit *service.AuditTrailService, logger *zap.Logger) *TimelineHandler {
	return &TimelineHandler{audit: audit, logger: logger}
}

// List handles GET /projects/:id/timeline
func (h *TimelineHandler) List(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.audit.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, h.logger, "ListTimeline", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Post handles POST /projects/:id/timeline
func (h *TimelineHandler) Post(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string            `json:"content"`
		Type    model.MessageType `json:"type"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Type == "" {
		req.Type = model.MessageUpdate
	}

	id, err := h.audit.Post(c.Request.Context(), a, projectID, req.Content, req.Type)
	if err != nil {
		respondError(c, h.logger, "PostTimeline", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message_id": id})
}

// Reply handles POST /timeline/:id/replies
func (h *TimelineHandler) Reply(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.audit.Reply(c.Request.Context(), a, messageID, req.Content)
	if err != nil {
		respondError(c, h.logger, "Reply", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reply_id": id})
}

// ListReplies handles GET /timeline/:id/replies
func (h *TimelineHandler) ListReplies(c *gin.Context) {
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	replies, err := h.audit.ListReplies(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, h.logger, "ListReplies", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

// Reclassify handles PUT /timeline/:id/classification
func (h *TimelineHandler) Reclassify(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Type   model.MessageType `json:"type"`
		Pinned bool              `json:"pinned"`
	}
	if !bindJSON(c, &req) {
		return
	}

	changed, err := h.audit.Reclassify(c.Request.Context(), a, messageID, req.Type, req.Pinned)
	if err != nil {
		respondError(c, h.logger, "Reclassify", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}
