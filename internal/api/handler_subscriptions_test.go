package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSubscriptionRouter() *gin.Engine {
	r := gin.Default()
	handler := NewHandler(nil, nil, nil)
	r.PUT("/api/subscriptions", handler.PutSubscription)
	return r
}

func TestPutSubscription(t *testing.T) {
	router := setupSubscriptionRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	endpoint := "https://push.example.com/abc?x=1"

	body, _ := json.Marshal(map[string]string{
		"endpoint": endpoint, "p256dh": "key", "auth": "secret", "work_order": "WO00000042",
	})
	w := env.do(http.MethodPut, "/api/subscriptions", bytes.NewReader(body))
	require.Equal(t, http.StatusCreated, w.Code)

	// Re-subscribing replaces the filter.
	body, _ = json.Marshal(map[string]string{
		"endpoint": endpoint, "p256dh": "key2", "auth": "secret2",
	})
	w = env.do(http.MethodPut, "/api/subscriptions", bytes.NewReader(body))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"work_order":""}`, w.Body.String())

	body, _ = json.Marshal(map[string]string{"endpoint": endpoint})
	w = env.do(http.MethodDelete, "/api/subscriptions", bytes.NewReader(body))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	r := gin.New()
	r.GET("/key", NewHandler(nil, nil, nil).GetVAPIDPublicKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/key", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r = gin.New()
	r.GET("/key", NewHandler(nil, nil, &webpush.Options{VAPIDPublicKey: "BPub"}).GetVAPIDPublicKey)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/key", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPub"}`, w.Body.String())
}
