package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func compileContract(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "contracts", name))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func rawRequest(t *testing.T, api *testAPI, method, path string, who actor, body string) (int, interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(who.id), 10))
	req.Header.Set("X-Test-Role", who.role)

	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	return resp.StatusCode, payload
}

func TestSubmissionContract(t *testing.T) {
	schema := compileContract(t, "submission.schema.json")
	api := setupAPI(t)
	assessment := api.seedAssessment(t, true)

	body := fmt.Sprintf(`{"child_id":%d,"answers":{"0":["A"],"1":{"response":"Scale both parts"}}}`, api.child.ID)
	status, payload := rawRequest(t, api, http.MethodPost, fmt.Sprintf("/api/v2/assessments/%d/submissions", assessment.ID), parent, body)
	require.Equal(t, http.StatusCreated, status)
	require.NoError(t, schema.Validate(payload))
}

func TestManualGradeContract(t *testing.T) {
	schema := compileContract(t, "manual_grade.schema.json")
	api := setupAPI(t)
	submission := submitMixed(t, api)

	body := fmt.Sprintf(`{"items":{"%d":7,"%d":1}}`, submission.Items[1].ID, submission.Items[0].ID)
	status, payload := rawRequest(t, api, http.MethodPatch, fmt.Sprintf("/api/admin/submissions/%d/grade", submission.ID), teacher, body)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, schema.Validate(payload))
}
