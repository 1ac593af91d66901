package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/scribesync/api/internal/model"
	"github.com/scribesync/api/internal/service"
	"github.com/scribesync/api/pkg/response"
)

type DistillHandler struct {
	service   *service.DistillService
	validator *validator.Validate
}

func NewDistillHandler(svc *service.DistillService, v *validator.Validate) *DistillHandler {
	return &DistillHandler{
		service:   svc,
		validator: v,
	}
}

// Queue handles GET /api/distill/queue
func (h *DistillHandler) Queue(c *fiber.Ctx) error {
	result, err := h.service.Queue(c.Context())
	if err != nil {
		return response.UpstreamError(c, err.Error())
	}

	return response.OK(c, result)
}

// Process handles GET /api/distill/process?temp_id=
func (h *DistillHandler) Process(c *fiber.Ctx) error {
	var req model.ProcessRequest
	if err := c.QueryParser(&req); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Process(c.Context(), req.TempID)
	if err != nil {
		return response.UpstreamError(c, err.Error())
	}

	return response.OK(c, result)
}

// Save handles GET /api/distill/save?result_id=&original_id=
func (h *DistillHandler) Save(c *fiber.Ctx) error {
	var req model.SaveRequest
	if err := c.QueryParser(&req); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Save(c.Context(), req.ResultID, req.OriginalID)
	if err != nil {
		return response.UpstreamError(c, err.Error())
	}

	return response.OK(c, result)
}
