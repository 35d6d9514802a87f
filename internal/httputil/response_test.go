package httputil

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, nil, http.StatusOK, map[string]int{"tracks": 12})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var got map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 12, got["tracks"])
}

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONError(rec, nil, http.StatusServiceUnavailable, "player not running")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var got map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "player not running", got["error"])
}

func TestWriteJSON_EncodeFailureLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	rec := httptest.NewRecorder()
	WriteJSON(rec, zap.New(core), http.StatusOK, map[string]float64{"rpm": math.NaN()})

	assert.Equal(t, 1, logs.FilterMessage("encode json response").Len())
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	ok := MethodNotAllowed(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, http.MethodGet, http.MethodHead)
	assert.True(t, ok)

	rec = httptest.NewRecorder()
	ok = MethodNotAllowed(rec, httptest.NewRequest(http.MethodPost, "/", nil), nil, http.MethodGet)
	assert.False(t, ok)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
