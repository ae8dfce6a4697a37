package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jantenpas/llm-eval-studio/internal/dto"
	"github.com/jantenpas/llm-eval-studio/internal/handler"
	"github.com/jantenpas/llm-eval-studio/internal/service"
	"github.com/jantenpas/llm-eval-studio/internal/worker"
)

type mockRunService struct {
	createResp dto.RunCreatedResponse
	createErr  error
	lastCreate dto.RunCreateRequest

	listResp []dto.RunSummaryResponse
	listErr  error

	getResp   dto.RunDetailResponse
	getErr    error
	lastGetID string
}

func (m *mockRunService) Create(_ context.Context, payload dto.RunCreateRequest) (dto.RunCreatedResponse, error) {
	m.lastCreate = payload
	if m.createErr != nil {
		return dto.RunCreatedResponse{}, m.createErr
	}
	return m.createResp, nil
}

func (m *mockRunService) List(_ context.Context) ([]dto.RunSummaryResponse, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResp, nil
}

func (m *mockRunService) Get(_ context.Context, id string) (dto.RunDetailResponse, error) {
	m.lastGetID = id
	if m.getErr != nil {
		return dto.RunDetailResponse{}, m.getErr
	}
	return m.getResp, nil
}

func (m *mockRunService) ProcessRun(_ context.Context, _ worker.Job) {}

func newRunApp(svc service.RunService) *fiber.App {
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	handler.NewRunHandler(svc, validator.New(), logger).Register(app.Group("/api/v1/runs"))
	return app
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRunHandler_CreateAccepted(t *testing.T) {
	svc := &mockRunService{createResp: dto.RunCreatedResponse{ID: "run-1", Name: "smoke", Status: "running"}}
	app := newRunApp(svc)

	payload := `{"name":"smoke","test_cases":[{"input":"2+2","expected_output":"4","scoring_method":"exact_match"}],"system_prompt":"Only the number."}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/runs", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var body dto.RunCreatedResponse
	decodeResponse(t, resp, &body)
	require.Equal(t, "run-1", body.ID)
	require.Equal(t, "running", body.Status)

	require.Equal(t, "smoke", svc.lastCreate.Name)
	require.Len(t, svc.lastCreate.TestCases, 1)
	require.Equal(t, "Only the number.", svc.lastCreate.SystemPrompt)
}

func TestRunHandler_CreateMalformedBody(t *testing.T) {
	svc := &mockRunService{}
	app := newRunApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/runs", `{"name":`))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
	require.Equal(t, "invalid request body", body.Message)
}

func TestRunHandler_CreateValidationFailure(t *testing.T) {
	svc := &mockRunService{}
	app := newRunApp(svc)

	cases := map[string]string{
		"missing name":    `{"test_cases":[{"input":"a","expected_output":"b"}]}`,
		"empty cases":     `{"name":"x","test_cases":[]}`,
		"unknown method":  `{"name":"x","test_cases":[{"input":"a","expected_output":"b","scoring_method":"bogus"}]}`,
		"missing outputs": `{"name":"x","test_cases":[{"input":"a"}]}`,
	}

	for label, payload := range cases {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/runs", payload))
		require.NoError(t, err, label)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, label)
	}

	require.Empty(t, svc.lastCreate.Name, "service must not be reached")
}

func TestRunHandler_CreateServiceFailure(t *testing.T) {
	svc := &mockRunService{createErr: errors.New("queue full")}
	app := newRunApp(svc)

	payload := `{"name":"smoke","test_cases":[{"input":"a","expected_output":"b"}]}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/runs", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "internal server error", body.Message)
}

func TestRunHandler_ListReturnsBareArray(t *testing.T) {
	avg := 0.8
	svc := &mockRunService{listResp: []dto.RunSummaryResponse{
		{ID: "r2", Name: "newer", Status: "completed", CreatedAt: time.Now().UTC(), ResultCount: 4, AvgScore: &avg},
		{ID: "r1", Name: "older", Status: "failed", CreatedAt: time.Now().UTC().Add(-time.Hour), ResultCount: 0},
	}}
	app := newRunApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body []map[string]interface{}
	decodeResponse(t, resp, &body)
	require.Len(t, body, 2)
	require.Equal(t, "r2", body[0]["id"])
	require.InDelta(t, 0.8, body[0]["avg_score"], 1e-9)
	require.NotContains(t, body[1], "avg_score")
}

func TestRunHandler_ListEmpty(t *testing.T) {
	svc := &mockRunService{listResp: []dto.RunSummaryResponse{}}
	app := newRunApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "[]", strings.TrimSpace(string(raw)))
}

func TestRunHandler_GetReturnsDetail(t *testing.T) {
	avgScore := 0.75
	avgLatency := 420.0
	svc := &mockRunService{getResp: dto.RunDetailResponse{
		ID:        "run-1",
		Name:      "detail",
		LLMModel:  "claude-sonnet-4-6",
		Status:    "completed",
		CreatedAt: time.Now().UTC(),
		Results: []dto.ResultResponse{
			{ID: "res-1", TestCaseInput: "2+2", TestCaseExpected: "4", ActualOutput: "4", Score: 1, LatencyMs: 400},
			{ID: "res-2", TestCaseInput: "3+3", TestCaseExpected: "6", ActualOutput: "5", Score: 0.5, LatencyMs: 440},
		},
		Total:        2,
		Passed:       1,
		AvgScore:     &avgScore,
		AvgLatencyMs: &avgLatency,
	}}
	app := newRunApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "run-1", svc.lastGetID)

	var body map[string]interface{}
	decodeResponse(t, resp, &body)
	require.Equal(t, "detail", body["name"])
	require.InDelta(t, 0.75, body["avg_score"], 1e-9)
	require.InDelta(t, 420.0, body["avg_latency_ms"], 1e-9)
	require.Len(t, body["results"], 2)
}

func TestRunHandler_GetOmitsAveragesWithoutResults(t *testing.T) {
	svc := &mockRunService{getResp: dto.RunDetailResponse{
		ID:      "run-2",
		Name:    "fresh",
		Status:  "running",
		Results: []dto.ResultResponse{},
	}}
	app := newRunApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-2", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decodeResponse(t, resp, &body)
	require.NotContains(t, body, "avg_score")
	require.NotContains(t, body, "avg_latency_ms")
}

func TestRunHandler_GetNotFound(t *testing.T) {
	svc := &mockRunService{getErr: service.ErrRunNotFound}
	app := newRunApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/ghost", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
	require.Equal(t, "Run not found", body.Message)
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}
