package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"camera-inspection-backend/config"
	"camera-inspection-backend/internal/capture"
	"camera-inspection-backend/internal/model"
	"camera-inspection-backend/internal/session"
	"camera-inspection-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopFeed struct{}

func (nopFeed) Start() error { return nil }
func (nopFeed) Pause()       {}
func (nopFeed) Resume()      {}

type testEnv struct {
	router  *gin.Engine
	handler *Handler
	store   store.Store
	session *session.Session
	camera  *capture.StaticCamera
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", regexp.MustCompile(`\W`).ReplaceAllString(t.Name(), "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x++ {
		frame.Set(x, x%480, color.RGBA{B: 255, A: 255})
	}

	appStore := store.NewGormStore(gormDB)
	require.NoError(t, appStore.CreateSchemaIfAbsent(context.Background()))

	env := &testEnv{
		store:  appStore,
		camera: capture.NewStaticCamera(frame),
		now:    time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	env.session = session.New(config.Default().Fields, nopFeed{}, env.camera, capture.JPEGEncoder{Quality: 85}, env.store)
	env.session.SetClock(func() time.Time { return env.now })
	env.handler = NewHandler(env.store, env.session, nil)
	env.handler.now = func() time.Time { return env.now }

	cfg := config.Default().Server
	cfg.RateLimitPerSec = 1000
	cfg.RateLimitBurst = 1000
	env.router = NewRouter(env.handler, cfg)
	return env
}

func (e *testEnv) do(method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) post(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return e.do(http.MethodPost, path, body)
}

func (e *testEnv) seed(t *testing.T, status model.Status, at time.Time) int64 {
	t.Helper()
	img, err := capture.JPEGEncoder{Quality: 70}.Encode(image.NewGray(image.Rect(0, 0, 480, 280)))
	require.NoError(t, err)
	rec := &model.InspectionRecord{
		SessionID: "s", EmployeeID: "EMP0000001", WorkOrder: "WO00000042",
		ChargeNo: "12345678901234", SerialNo: "901", PartNo: "16099680", UniqueNo: "5678901",
		Status: status, Time: at, Image: img,
	}
	require.NoError(t, e.store.Insert(context.Background(), rec))
	return rec.ID
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) session.View {
	t.Helper()
	var v struct {
		State string `json:"state"`
		Ready bool   `json:"ready"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return session.View{State: v.State, Ready: v.Ready}
}

func TestOperatorFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AWAITING_EMPLOYEE", decodeView(t, w).State)

	w = env.post(t, "/api/session/employee", map[string]string{"employee_id": "EMP0000001"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AWAITING_WORK_ORDER", decodeView(t, w).State)

	w = env.post(t, "/api/session/work-order", map[string]string{"work_order": "WO00000042"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COLLECTING_FIELDS", decodeView(t, w).State)

	w = env.post(t, "/api/session/capture", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	fields := map[string]string{
		"charge_no":   "12345678901234",
		"unique_no":   "5678901",
		"serial_no":   "901",
		"vendor_code": "16099680",
	}
	for name, value := range fields {
		w = env.post(t, "/api/session/fields", map[string]string{"field": name, "value": value})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"validity":"valid"`)
	}

	w = env.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, "READY_TO_CAPTURE", decodeView(t, w).State)
	assert.True(t, decodeView(t, w).Ready)

	w = env.post(t, "/api/session/capture", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CONFIRMING", decodeView(t, w).State)

	w = env.do(http.MethodGet, "/api/session/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0xFF, 0xD8}))

	w = env.post(t, "/api/session/confirm", map[string]string{"decision": "NOT_OK"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec model.InspectionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, model.StatusNotOK, rec.Status)
	assert.Equal(t, "16099680", rec.PartNo)
	assert.NotContains(t, w.Body.String(), "image")

	w = env.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, "COLLECTING_FIELDS", decodeView(t, w).State)

	w = env.do(http.MethodGet, "/api/session/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, fmt.Sprintf("/api/inspections/%d/image", rec.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0xFF, 0xD8}))

	w = env.do(http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":1,"ok":0,"notOk":1,"today":1}`, w.Body.String())

	w = env.post(t, "/api/session/new-user", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AWAITING_EMPLOYEE", decodeView(t, w).State)
	assert.False(t, env.camera.Running())
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		path    string
		payload any
		want    int
	}{
		{"capture before employee", "/api/session/capture", nil, http.StatusConflict},
		{"confirm without capture", "/api/session/confirm", map[string]string{"decision": "OK"}, http.StatusConflict},
		{"unknown decision", "/api/session/confirm", map[string]string{"decision": "maybe"}, http.StatusBadRequest},
		{"missing decision", "/api/session/confirm", map[string]string{}, http.StatusBadRequest},
		{"unknown field", "/api/session/fields", map[string]string{"field": "color", "value": "x"}, http.StatusBadRequest},
		{"field before work order", "/api/session/fields", map[string]string{"field": "serial_no", "value": "901"}, http.StatusConflict},
		{"blank employee", "/api/session/employee", map[string]string{"employee_id": "   "}, http.StatusBadRequest},
		{"work order first", "/api/session/work-order", map[string]string{"work_order": "WO00000042"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.post(t, tt.path, tt.payload)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestCaptureWithoutCameraFrame(t *testing.T) {
	env := newTestEnv(t)
	env.camera.SetFrame(nil)

	require.Equal(t, http.StatusOK, env.post(t, "/api/session/employee", map[string]string{"employee_id": "EMP0000001"}).Code)
	require.Equal(t, http.StatusOK, env.post(t, "/api/session/work-order", map[string]string{"work_order": "WO00000042"}).Code)
	for _, f := range []struct{ name, value string }{
		{"charge_no", "12345678901234"}, {"unique_no", "5678901"}, {"serial_no", "901"}, {"vendor_code", "16099680"},
	} {
		require.Equal(t, http.StatusOK, env.post(t, "/api/session/fields", map[string]string{"field": f.name, "value": f.value}).Code)
	}

	w := env.post(t, "/api/session/capture", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSuspendAndReattach(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/api/session/suspend", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"suspended":true`)

	w = env.post(t, "/api/session/reattach", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"suspended":false`)
}

func TestGetInspections(t *testing.T) {
	env := newTestEnv(t)
	day := func(d int) time.Time { return env.now.AddDate(0, 0, d) }

	env.seed(t, model.StatusOK, day(0))
	env.seed(t, model.StatusNotOK, day(-1))
	env.seed(t, model.StatusOK, day(-3))
	env.seed(t, model.StatusOK, day(-30))

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"default is the last seven days", "", 3},
		{"status filter", "?status=not_ok", 1},
		{"explicit dates are inclusive", "?from=2026-02-27&to=2026-03-01", 2},
		{"rfc3339 bounds", "?from=2026-01-01T00:00:00Z&to=2026-03-02T23:59:59Z&status=OK", 3},
		{"empty range", "?from=2025-01-01&to=2025-01-02", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/inspections"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var records []model.InspectionRecord
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
			assert.Len(t, records, tt.want)
			for i := 1; i < len(records); i++ {
				assert.False(t, records[i].Time.After(records[i-1].Time), "newest first")
			}
		})
	}

	for _, q := range []string{"?status=MAYBE", "?from=yesterday", "?to=2026-13-01", "?from=2026-03-02&to=2026-03-01"} {
		w := env.do(http.MethodGet, "/api/inspections"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetInspectionAndImages(t *testing.T) {
	env := newTestEnv(t)
	id := env.seed(t, model.StatusOK, env.now)

	w := env.do(http.MethodGet, fmt.Sprintf("/api/inspections/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"workOrder":"WO00000042"`)

	path := fmt.Sprintf("/api/inspections/%d/thumbnail", id)
	w = env.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 240, cfg.Width)
	assert.Equal(t, 140, cfg.Height)

	w = env.do(http.MethodGet, path, nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/inspections/999", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/inspections/999/image", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/inspections/abc", nil).Code)
}

func TestExports(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, model.StatusOK, env.now)
	env.seed(t, model.StatusNotOK, env.now.Add(-time.Hour))

	w := env.do(http.MethodGet, "/api/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="inspections_2026-02-23_2026-03-02.xlsx"`))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w = env.do(http.MethodGet, "/api/export.pdf?status=NOT_OK", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = env.do(http.MethodGet, "/api/export.pdf?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
