package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/scribesync/api/internal/model"
	"github.com/scribesync/api/internal/service"
	"github.com/scribesync/api/internal/store"
	"github.com/scribesync/api/pkg/response"
)

type OCRHandler struct {
	service   *service.OCRService
	validator *validator.Validate
}

func NewOCRHandler(svc *service.OCRService, v *validator.Validate) *OCRHandler {
	return &OCRHandler{
		service:   svc,
		validator: v,
	}
}

// Poll handles GET /api/ocr/poll?job_id=. Jobs still in flight come back as
// 202; terminal jobs come back as 200 and stay that way on repeat calls.
func (h *OCRHandler) Poll(c *fiber.Ctx) error {
	var req model.PollRequest
	if err := c.QueryParser(&req); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Poll(c.Context(), req.JobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.UpstreamError(c, err.Error())
	}

	if result.Status == model.JobStatusProcessing {
		return response.Processing(c, result)
	}
	return response.OK(c, result)
}

// Jobs handles GET /api/jobs
func (h *OCRHandler) Jobs(c *fiber.Ctx) error {
	jobs, err := h.service.ListJobs(c.Context())
	if err != nil {
		return response.UpstreamError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"jobs": jobs})
}
