package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/config"
	"github.com/noah-isme/gema-assessment-api/internal/handler"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/internal/router"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

const (
	parentID  = uint(9)
	teacherID = uint(50)
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

type testAPI struct {
	app   *fiber.App
	db    *gorm.DB
	child models.Child
}

// headerAuth stands in for JWT validation and trusts test headers.
func headerAuth(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	logger := zerolog.New(io.Discard)
	validate := utils.NewValidator()

	submissions := repository.NewSubmissionRepository(db)
	children := repository.NewChildRepository(db)
	tasks := service.NewTaskService(repository.NewAdminTaskRepository(db), logger)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", validate, logger)

	submit := service.NewSubmissionService(service.SubmissionDependencies{
		Assessments: repository.NewAssessmentRepository(db),
		Submissions: submissions,
		Children:    children,
		Tasks:       tasks,
		Validator:   validate,
	}, logger)
	manual := service.NewManualGradingService(submissions, tasks, nil, activity, validate, logger)
	flags := service.NewGradingFlagService(repository.NewGradingFlagRepository(db), submissions, children, manual, tasks, activity, validate, logger)
	reports := service.NewReportService(submissions, children, nil, time.Minute, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test", FlagRateLimit: 100, FlagRateWindow: time.Minute}, router.Dependencies{
		SubmissionHandler:    handler.NewSubmissionHandler(submit, reports, logger),
		AdminGradingHandler:  handler.NewAdminGradingHandler(manual, logger),
		GradingFlagHandler:   handler.NewGradingFlagHandler(flags, logger),
		AdminTaskHandler:     handler.NewAdminTaskHandler(tasks, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activity, logger),
		NotificationHandler:  handler.NewNotificationHandler(notifications, logger),
		JWTMiddleware:        headerAuth,
	})

	assigned := teacherID
	child := models.Child{UserID: parentID, Name: "Ada", TeacherID: &assigned}
	require.NoError(t, db.Create(&child).Error)

	return &testAPI{app: app, db: db, child: child}
}

func (a *testAPI) seedAssessment(t *testing.T, retakeAllowed bool) models.Assessment {
	t.Helper()
	assessment := models.Assessment{
		Title:         "Fractions",
		RetakeAllowed: retakeAllowed,
		Questions: []models.AssessmentQuestion{
			{OrderPosition: 1, Type: "mcq", Prompt: "Which is a half?", Marks: 5, Payload: datatypes.JSON(`{"options":[{"id":"A","text":"1/2","is_correct":true},{"id":"B","text":"1/3"}]}`)},
			{OrderPosition: 2, Type: "essay", Prompt: "Explain equivalent fractions", Marks: 10},
		},
	}
	require.NoError(t, a.db.Create(&assessment).Error)
	return assessment
}

type actor struct {
	id   uint
	role string
}

var (
	parent  = actor{id: parentID, role: "parent"}
	teacher = actor{id: teacherID, role: "teacher"}
)

func (a *testAPI) do(t *testing.T, method, path string, who *actor, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(who.id), 10))
		req.Header.Set("X-Test-Role", who.role)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") != "" && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp.StatusCode, payload
}

func decodeData(t *testing.T, payload envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(payload.Data, target))
}
