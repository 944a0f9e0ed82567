package class

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
	"fitclass/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// @Summary      Create a class template
// @Tags         admin,classes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body class.CreateTemplateRequest true "Template payload"
// @Success      201 {object} class.Template
// @Failure      400 {object} api.ErrorResponse
// @Router       /admin/templates [post]
func (h *Handler) CreateTemplate(c *gin.Context) {
	coachID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req CreateTemplateRequest
	if !api.BindJSON(c, &req) {
		return
	}

	t, err := h.service.CreateTemplate(c.Request.Context(), coachID, req)
	if err != nil {
		if errors.Is(err, ErrTemplateInvalid) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid template data"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create template"})
		return
	}

	c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	var coachID *int
	if role, _ := auth.GetRole(c); role == auth.RoleCoach {
		id, _ := auth.GetUserID(c)
		coachID = &id
	}

	templates, err := h.service.ListTemplates(c.Request.Context(), coachID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch templates"})
		return
	}

	c.JSON(http.StatusOK, templates)
}

func (h *Handler) DeactivateTemplate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("templateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid template ID"})
		return
	}

	if err := h.service.SetTemplateActive(c.Request.Context(), id, false); err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to deactivate template"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Template deactivated"})
}

// @Summary      Create a session for a template
// @Tags         admin,classes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        templateID path int true "Template ID"
// @Param        request body class.CreateSessionRequest true "Session payload"
// @Success      201 {object} class.Session
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/templates/{templateID}/sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	templateID, err := strconv.Atoi(c.Param("templateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid template ID"})
		return
	}

	var req CreateSessionRequest
	if !api.BindJSON(c, &req) {
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), templateID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Template not found"})
		case errors.Is(err, ErrSessionInvalid):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session data"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create session"})
		}
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *Handler) UpdateSessionStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	var req UpdateSessionStatusRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if err := h.service.UpdateSessionStatus(c.Request.Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Session not found"})
		case errors.Is(err, ErrSessionInvalid):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Session status cannot change"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to update session"})
		}
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Session updated"})
}

// @Summary      List upcoming sessions with availability
// @Tags         classes
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} class.SessionListing
// @Router       /sessions [get]
func (h *Handler) ListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	sessions, err := h.service.ListUpcomingSessions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch sessions"})
		return
	}

	c.JSON(http.StatusOK, sessions)
}
