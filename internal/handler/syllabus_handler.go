package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unitir-dev/syllabus-api/internal/models"
	"github.com/unitir-dev/syllabus-api/internal/service"
	appErrors "github.com/unitir-dev/syllabus-api/pkg/errors"
	"github.com/unitir-dev/syllabus-api/pkg/response"
)

// SyllabusHandler handles syllabus authoring, review and PDF endpoints.
type SyllabusHandler struct {
	service *service.SyllabusService
}

// NewSyllabusHandler constructs a syllabus handler.
func NewSyllabusHandler(svc *service.SyllabusService) *SyllabusHandler {
	return &SyllabusHandler{service: svc}
}

// Create godoc
// @Summary Create syllabus
// @Description Create a draft syllabus; the version number is assigned server-side
// @Tags Syllabi
// @Accept json
// @Produce json
// @Param payload body service.CreateSyllabusRequest true "Syllabus payload"
// @Success 201 {object} response.Envelope
// @Router /syllabi [post]
func (h *SyllabusHandler) Create(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSyllabusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	syllabus, err := h.service.Create(c.Request.Context(), *actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, syllabus)
}

// My godoc
// @Summary List the current teacher's syllabi
// @Tags Syllabi
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /syllabi/my [get]
func (h *SyllabusHandler) My(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	syllabi, pagination, err := h.service.ListMine(c.Request.Context(), actor.ID, syllabusFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabi, pagination)
}

// All godoc
// @Summary List all syllabi
// @Tags Syllabi
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /syllabi/all [get]
func (h *SyllabusHandler) All(c *gin.Context) {
	syllabi, pagination, err := h.service.ListAll(c.Request.Context(), syllabusFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabi, pagination)
}

// Pending godoc
// @Summary List the pending review queue
// @Description Heads only see pending syllabi from the department they head
// @Tags Syllabi
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /syllabi/pending [get]
func (h *SyllabusHandler) Pending(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	syllabi, pagination, err := h.service.ListPending(c.Request.Context(), *actor, syllabusFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabi, pagination)
}

// Get godoc
// @Summary Get syllabus by id
// @Tags Syllabi
// @Produce json
// @Param id path string true "Syllabus ID"
// @Success 200 {object} response.Envelope
// @Router /syllabi/{id} [get]
func (h *SyllabusHandler) Get(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	syllabus, err := h.service.Get(c.Request.Context(), *actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabus, nil)
}

// Update godoc
// @Summary Update syllabus content
// @Description Replaces template data; the prior content is snapshotted and the syllabus returns to draft
// @Tags Syllabi
// @Accept json
// @Produce json
// @Param id path string true "Syllabus ID"
// @Param payload body service.UpdateSyllabusRequest true "Syllabus payload"
// @Success 200 {object} response.Envelope
// @Router /syllabi/{id} [put]
func (h *SyllabusHandler) Update(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateSyllabusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	syllabus, err := h.service.Update(c.Request.Context(), *actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabus, nil)
}

// UpdateStatus godoc
// @Summary Move a syllabus through review
// @Tags Syllabi
// @Accept json
// @Produce json
// @Param id path string true "Syllabus ID"
// @Param payload body service.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /syllabi/{id}/status [put]
func (h *SyllabusHandler) UpdateStatus(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	syllabus, err := h.service.UpdateStatus(c.Request.Context(), *actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabus, nil)
}

// Delete godoc
// @Summary Delete syllabus
// @Tags Syllabi
// @Produce json
// @Param id path string true "Syllabus ID"
// @Success 204
// @Router /syllabi/{id} [delete]
func (h *SyllabusHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Versions godoc
// @Summary List syllabus version snapshots
// @Tags Syllabi
// @Produce json
// @Param id path string true "Syllabus ID"
// @Success 200 {object} response.Envelope
// @Router /syllabi/{id}/versions [get]
func (h *SyllabusHandler) Versions(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	versions, err := h.service.ListVersions(c.Request.Context(), *actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// PDF godoc
// @Summary Download the assembled syllabus PDF
// @Tags Syllabi
// @Produce application/pdf
// @Param id path string true "Syllabus ID"
// @Success 200 {file} binary
// @Router /syllabi/{id}/pdf [get]
func (h *SyllabusHandler) PDF(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	data, filename, err := h.service.RenderPDF(c.Request.Context(), *actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// Preview godoc
// @Summary Assemble a PDF from unsaved template data
// @Description JSON body drives the native engine; a multipart body with an
// image part drives the image engine
// @Tags Syllabi
// @Accept json
// @Produce application/pdf
// @Param payload body service.PreviewRequest true "Preview payload"
// @Success 200 {file} binary
// @Router /syllabi/preview [post]
func (h *SyllabusHandler) Preview(c *gin.Context) {
	var req service.PreviewRequest

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, err := c.FormFile("image")
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "preview image is required"))
			return
		}
		f, err := file.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable preview image"))
			return
		}
		defer f.Close()
		req.Image, err = io.ReadAll(f)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable preview image"))
			return
		}
		if raw := c.PostForm("template_data"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.TemplateData); err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid template data"))
				return
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	data, filename, err := h.service.RenderPreview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

func syllabusFilter(c *gin.Context) models.SyllabusFilter {
	var filter models.SyllabusFilter
	filter.Status = models.SyllabusStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	return filter
}
