package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/config"
	"github.com/david2777/hydra-render-farm/internal/model"
	"github.com/david2777/hydra-render-farm/internal/response"
	"github.com/david2777/hydra-render-farm/internal/store/storetest"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := storetest.New(t)
	app := fiber.New()
	Setup(app, db, config.Default(), zap.NewNop())
	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *response.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope response.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return &envelope
}

func TestRouter_Health(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_SubmitAndListJobs(t *testing.T) {
	app, db := newTestApp(t)

	env := doJSON(t, app, http.MethodPost, "/api/jobs", map[string]any{
		"Name":       "beauty",
		"Owner":      "artist",
		"Mode":       model.ModeMayaRender,
		"TaskFile":   "/proj/shot.mb",
		"StartFrame": 1,
		"EndFrame":   3,
	})
	assert.Equal(t, response.CodeSuccess, env.Code)

	var jobs int64
	require.NoError(t, db.Model(&model.RenderJob{}).Count(&jobs).Error)
	assert.EqualValues(t, 1, jobs)

	env = doJSON(t, app, http.MethodGet, "/api/jobs/?owner=artist", nil)
	assert.Equal(t, response.CodeSuccess, env.Code)
	list, ok := env.Data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestRouter_JobLifecycle(t *testing.T) {
	app, db := newTestApp(t)

	job := &model.RenderJob{Name: "held", Status: model.StatusPaused, MaxAttempts: 10}
	require.NoError(t, db.Create(job).Error)

	env := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/jobs/%d/start", job.ID), nil)
	assert.Equal(t, response.CodeSuccess, env.Code)

	var got model.RenderJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Equal(t, model.StatusReady, got.Status)
}

func TestRouter_NotFound(t *testing.T) {
	app, _ := newTestApp(t)

	env := doJSON(t, app, http.MethodGet, "/api/jobs/99999", nil)
	assert.Equal(t, response.CodeNotFound, env.Code)
}

func TestRouter_InvalidID(t *testing.T) {
	app, _ := newTestApp(t)

	env := doJSON(t, app, http.MethodGet, "/api/tasks/banana", nil)
	assert.Equal(t, response.CodeError, env.Code)
}

func TestRouter_Summary(t *testing.T) {
	app, db := newTestApp(t)
	require.NoError(t, db.Create(&model.RenderJob{Name: "a", Status: model.StatusReady}).Error)

	env := doJSON(t, app, http.MethodGet, "/api/summary", nil)
	assert.Equal(t, response.CodeSuccess, env.Code)
	assert.NotNil(t, env.Data)
}
