package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// GradingFlagHandler exposes dispute filing and the admin review queue.
type GradingFlagHandler struct {
	service service.GradingFlagService
	logger  zerolog.Logger
}

// NewGradingFlagHandler constructs the handler.
func NewGradingFlagHandler(service service.GradingFlagService, logger zerolog.Logger) *GradingFlagHandler {
	return &GradingFlagHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_flag_handler").Logger(),
	}
}

// Register attaches the learner-facing filing route. Extra handlers such as a
// rate limiter run before it.
func (h *GradingFlagHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	handlers := make([]fiber.Handler, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	router.Post("", append(handlers, h.file)...)
}

// RegisterAdmin attaches the review queue routes.
func (h *GradingFlagHandler) RegisterAdmin(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/stats", h.stats)
	router.Patch("/bulk-resolve", h.bulkResolve)
	router.Patch("/:id/resolve", h.resolve)
}

func (h *GradingFlagHandler) file(c *fiber.Ctx) error {
	var payload dto.GradingFlagCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	flag, err := h.service.File(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to file grading flag")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grading flag submitted", flag)
}

func (h *GradingFlagHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := pagination(c, 20, 100)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	req := dto.GradingFlagListRequest{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
	}
	if raw := c.Query("child_id"); raw != "" {
		childID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid child id")
		}
		req.ChildID = uint(childID)
	}

	response, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list grading flags")
	}

	return utils.OK(c, response.Items, "grading flags", response.Pagination)
}

func (h *GradingFlagHandler) stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load grading flag stats")
	}
	return utils.SendSuccess(c, "grading flag stats", stats)
}

func (h *GradingFlagHandler) resolve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradingFlagResolveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	flag, err := h.service.Resolve(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to resolve grading flag")
	}

	return utils.SendSuccess(c, "grading flag "+flag.Status, flag)
}

func (h *GradingFlagHandler) bulkResolve(c *fiber.Ctx) error {
	var payload dto.GradingFlagBulkResolveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.BulkResolve(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to resolve grading flags")
	}

	return utils.SendSuccess(c, "grading flags updated", result)
}
