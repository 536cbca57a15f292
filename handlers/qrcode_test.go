package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"qrvend-backend/engine"
	"qrvend-backend/models"
	"qrvend-backend/registry"
	"qrvend-backend/storage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	store := storage.NewMemory()
	reg := registry.New(store, log, registry.DefaultIDLength)
	eng := engine.New(store, log, decimal.RequireFromString("0.05"))
	h := NewQRCodeHandler(reg, eng, log)

	router := gin.New()
	api := router.Group("/api")
	api.POST("/qrdata", h.CreateQRCode)
	api.GET("/qrdata/:qrcode_id", h.GetQRCode)
	api.GET("/qrcodes", h.ListQRCodes)
	api.PUT("/qrdata/exchange/:qrcode_id", h.ExchangeQRCode)
	api.PUT("/qrdata/:qrcode_id", h.UpdateQRCode)
	return router
}

func do(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createCode(t *testing.T, router *gin.Engine, value string) models.View {
	t.Helper()
	w := do(router, http.MethodPost, "/api/qrdata", gin.H{
		"new_value":     value,
		"creation_date": time.Now().Add(-time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view models.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

// The full reader lifecycle: create, read, exchange, read again and a
// rejected second exchange.
func TestQRCodeLifecycle(t *testing.T) {
	router := newTestRouter(t)

	view := createCode(t, router, "5.00")
	assert.Len(t, view.ID, registry.DefaultIDLength)
	assert.Equal(t, models.StateValid, view.State)
	assert.True(t, view.OldValue.IsZero())
	assert.Nil(t, view.UsedDate)

	w := do(router, http.MethodGet, "/api/qrdata/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPut, "/api/qrdata/exchange/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var exchange struct {
		Status   string          `json:"status"`
		OldValue decimal.Decimal `json:"old_value"`
		NewValue decimal.Decimal `json:"new_value"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exchange))
	assert.Equal(t, "success", exchange.Status)
	assert.True(t, exchange.OldValue.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, exchange.NewValue.IsZero())

	w = do(router, http.MethodGet, "/api/qrdata/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after models.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, models.StateUsed, after.State)
	assert.True(t, after.NewValue.IsZero())
	assert.True(t, after.OldValue.Equal(decimal.RequireFromString("5.00")))
	require.NotNil(t, after.UsedDate)

	w = do(router, http.MethodPut, "/api/qrdata/exchange/"+view.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already_used")
}

func TestExchangeBelowThreshold(t *testing.T) {
	router := newTestRouter(t)

	view := createCode(t, router, "0.02")

	w := do(router, http.MethodPut, "/api/qrdata/exchange/"+view.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "value_below_minimum")

	// The rejected code keeps its value.
	w = do(router, http.MethodGet, "/api/qrdata/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after models.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, models.StateValid, after.State)
}

func TestExchangeUnknownCode(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPut, "/api/qrdata/exchange/nothere1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetFieldsProjection(t *testing.T) {
	router := newTestRouter(t)

	view := createCode(t, router, "3.00")

	w := do(router, http.MethodGet, fmt.Sprintf("/api/qrdata/%s?fields=state,new_value", view.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var projection map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &projection))
	assert.Equal(t, view.ID, projection["qrcode_id"])
	assert.Contains(t, projection, "state")
	assert.NotContains(t, projection, "old_value")

	w = do(router, http.MethodGet, fmt.Sprintf("/api/qrdata/%s?fields=bogus", view.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRejectsBadInput(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/api/qrdata", gin.H{
		"new_value":     "0",
		"creation_date": time.Now().Add(-time.Minute).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/qrdata", gin.H{
		"new_value":     "5.00",
		"creation_date": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCodes(t *testing.T) {
	router := newTestRouter(t)

	for i := 0; i < 3; i++ {
		createCode(t, router, "1.00")
	}

	w := do(router, http.MethodGet, "/api/qrcodes?skip=0&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var views []models.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	assert.Len(t, views, 2)

	w = do(router, http.MethodGet, "/api/qrcodes?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateCode(t *testing.T) {
	router := newTestRouter(t)

	view := createCode(t, router, "5.00")

	w := do(router, http.MethodPut, "/api/qrdata/"+view.ID, gin.H{
		"new_value":     "9.00",
		"old_value":     "0",
		"state":         models.StateValid,
		"creation_date": time.Now().Add(-time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, updated.NewValue.Equal(decimal.RequireFromString("9.00")))
}
