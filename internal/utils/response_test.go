package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/observability"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

type envelope struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Meta      map[string]interface{} `json:"meta"`
	Details   map[string]interface{} `json:"details"`
	RequestID string                 `json:"request_id"`
}

func TestOKIncludesPaginationMeta(t *testing.T) {
	app := fiber.New()
	app.Get("/flags", func(c *fiber.Ctx) error {
		return utils.OK(c, fiber.Map{"status": "pending"}, "", fiber.Map{"page": 2, "total_items": 41})
	})

	status, payload := call(t, app, "/flags")
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Equal(t, "pending", payload.Data["status"])
	require.Equal(t, float64(2), payload.Meta["page"])
	require.Equal(t, float64(41), payload.Meta["total_items"])
}

func TestSendSuccessWithStatusDefaults(t *testing.T) {
	app := fiber.New()
	app.Post("/submissions", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission graded", fiber.Map{"marks_obtained": 13})
	})
	app.Get("/zero", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, 0, "", nil)
	})

	status, payload := callMethod(t, app, http.MethodPost, "/submissions")
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, "submission graded", payload.Message)
	require.Equal(t, float64(13), payload.Data["marks_obtained"])

	status, payload = call(t, app, "/zero")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "success", payload.Message)
	require.Nil(t, payload.Data)
}

func TestFailCarriesConfigurationDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusUnprocessableEntity, "assessment cannot be graded", fiber.Map{
			"question_index": 3,
			"reason":         "unsupported question type",
		})
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusConflict, "")
	})

	status, payload := call(t, app, "/")
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.False(t, payload.Success)
	require.Equal(t, float64(3), payload.Details["question_index"])
	require.Nil(t, payload.Data)

	status, payload = call(t, app, "/plain")
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "error", payload.Message)
	require.Nil(t, payload.Details)
	require.Empty(t, payload.RequestID)
}

func TestFailEchoesCorrelationID(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), "req-77"))
		return c.Next()
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", nil)
	})

	_, payload := call(t, app, "/fail")
	require.Equal(t, "req-77", payload.RequestID)

	_, payload = call(t, app, "/ok")
	require.Empty(t, payload.RequestID)
}

func call(t *testing.T, app *fiber.App, path string) (int, envelope) {
	return callMethod(t, app, http.MethodGet, path)
}

func callMethod(t *testing.T, app *fiber.App, method, path string) (int, envelope) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}
