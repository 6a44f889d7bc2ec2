package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// AdminTaskHandler lists the open work queue for staff.
type AdminTaskHandler struct {
	service service.TaskService
	logger  zerolog.Logger
}

// NewAdminTaskHandler constructs the handler.
func NewAdminTaskHandler(service service.TaskService, logger zerolog.Logger) *AdminTaskHandler {
	return &AdminTaskHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_task_handler").Logger(),
	}
}

// Register attaches task routes to the router group.
func (h *AdminTaskHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AdminTaskHandler) list(c *fiber.Ctx) error {
	tasks, err := h.service.ListOpen(c.UserContext(), activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list tasks")
	}
	return utils.SendSuccess(c, "open tasks", tasks)
}
