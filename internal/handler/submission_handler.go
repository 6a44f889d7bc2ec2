package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// SubmissionHandler exposes assessment submission endpoints to learners and parents.
type SubmissionHandler struct {
	service service.SubmissionService
	reports service.ReportService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, reports service.ReportService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		reports: reports,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// RegisterAssessments attaches the submit route under an assessments group.
func (h *SubmissionHandler) RegisterAssessments(router fiber.Router) {
	router.Post("/:id/submissions", h.submit)
}

// Register attaches the submission read routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Get("/:id/report", h.report)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitAssessmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Submit(c.UserContext(), assessmentID, payload, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to submit assessment")
	}

	message := "submission graded"
	if submission.Status != models.SubmissionStatusGraded {
		message = "submission received, awaiting manual grading"
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, message, submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) report(c *fiber.Ctx) error {
	if h.reports == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "reports unavailable")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.reports.Get(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to build report")
	}

	return utils.SendSuccess(c, "submission report", report)
}
