package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scribesync/api/internal/service"
	"github.com/scribesync/api/pkg/response"
)

type IntakeHandler struct {
	service *service.IntakeService
}

func NewIntakeHandler(svc *service.IntakeService) *IntakeHandler {
	return &IntakeHandler{service: svc}
}

// Run handles GET /api/intake/run. It scans the inbox for unread notebook
// emails and files every attachment it finds. Per-message failures are
// reported inside the result; only a failure to reach the mailbox at all
// turns into an error response.
func (h *IntakeHandler) Run(c *fiber.Ctx) error {
	result, err := h.service.ProcessInbox(c.Context())
	if err != nil {
		return response.UpstreamError(c, err.Error())
	}

	return response.OK(c, result)
}
