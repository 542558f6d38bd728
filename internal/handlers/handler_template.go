package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/dto"
	"github.com/SscSPs/payroll_engine/internal/middleware"
)

// templateHandler handles HTTP requests related to pay structure templates.
type templateHandler struct {
	templateService portssvc.TemplateSvcFacade
}

func newTemplateHandler(svc portssvc.TemplateSvcFacade) *templateHandler {
	return &templateHandler{templateService: svc}
}

// RegisterTemplateRoutes registers routes related to pay structure templates.
func RegisterTemplateRoutes(rg *gin.RouterGroup, svc portssvc.TemplateSvcFacade) {
	h := newTemplateHandler(svc)

	templates := rg.Group("/templates")
	{
		templates.GET("/:id", h.getTemplate)
		templates.POST("/:id/publish", h.publishTemplate)
		templates.POST("/:id/deprecate", h.deprecateTemplate)
		templates.POST("/:id/archive", h.archiveTemplate)
	}
}

// getTemplate godoc
// @Summary Get a pay structure template
// @Tags templates
// @Produce  json
// @Param   id path string true "Template ID"
// @Success 200 {object} dto.TemplateResponse
// @Failure 404 {object} map[string]string "Template not found"
// @Security BearerAuth
// @Router /templates/{id} [get]
func (h *templateHandler) getTemplate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	_, orgID, ok := caller(c, logger)
	if !ok {
		return
	}

	template, err := h.templateService.GetTemplate(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve template")
		return
	}
	c.JSON(http.StatusOK, dto.ToTemplateResponse(template))
}

// publishTemplate godoc
// @Summary Publish a draft template
// @Description Validates formulas, dependencies and tax references, then activates the template
// @Tags templates
// @Accept  json
// @Produce  json
// @Param   id path string true "Template ID"
// @Param   request body dto.PublishTemplateRequest false "Publish options"
// @Success 200 {object} dto.TemplateResponse
// @Failure 400 {object} map[string]string "Template failed validation"
// @Failure 409 {object} map[string]string "Template is not a draft or overlaps another default"
// @Security BearerAuth
// @Router /templates/{id}/publish [post]
func (h *templateHandler) publishTemplate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.PublishTemplateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			logger.Warn("Failed to bind JSON for PublishTemplate", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
	}

	principalID, orgID, ok := caller(c, logger)
	if !ok {
		return
	}
	templateID := c.Param("id")
	logger = logger.With(slog.String("template_id", templateID))

	template, err := h.templateService.Publish(c.Request.Context(), orgID, templateID, req.MakeDefault, principalID)
	if err != nil {
		respondError(c, logger, err, "Failed to publish template")
		return
	}

	logger.Info("Template published", slog.String("version", template.Version), slog.Bool("default", template.IsDefault))
	c.JSON(http.StatusOK, dto.ToTemplateResponse(template))
}

// deprecateTemplate godoc
// @Summary Deprecate an active template
// @Tags templates
// @Produce  json
// @Param   id path string true "Template ID"
// @Success 200 {object} dto.TemplateResponse
// @Failure 409 {object} map[string]string "Template is not active"
// @Security BearerAuth
// @Router /templates/{id}/deprecate [post]
func (h *templateHandler) deprecateTemplate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	principalID, orgID, ok := caller(c, logger)
	if !ok {
		return
	}

	template, err := h.templateService.Deprecate(c.Request.Context(), orgID, c.Param("id"), principalID)
	if err != nil {
		respondError(c, logger, err, "Failed to deprecate template")
		return
	}
	c.JSON(http.StatusOK, dto.ToTemplateResponse(template))
}

// archiveTemplate godoc
// @Summary Archive a deprecated template
// @Tags templates
// @Produce  json
// @Param   id path string true "Template ID"
// @Success 200 {object} dto.TemplateResponse
// @Failure 409 {object} map[string]string "Template is not deprecated"
// @Security BearerAuth
// @Router /templates/{id}/archive [post]
func (h *templateHandler) archiveTemplate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	principalID, orgID, ok := caller(c, logger)
	if !ok {
		return
	}

	template, err := h.templateService.Archive(c.Request.Context(), orgID, c.Param("id"), principalID)
	if err != nil {
		respondError(c, logger, err, "Failed to archive template")
		return
	}
	c.JSON(http.StatusOK, dto.ToTemplateResponse(template))
}
