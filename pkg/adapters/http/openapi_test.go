package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/parley"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPI(t *testing.T) {
	doc, err := OpenAPI(context.Background())
	require.NoError(t, err)

	assert.Equal(t, parley.Version, doc.Info.Version)
	for _, p := range []string{"/v1/turns", "/v1/handlers", "/healthz", "/info"} {
		assert.NotNil(t, doc.Paths.Value(p), p)
	}
	turns := doc.Paths.Value("/v1/turns").Post
	require.NotNil(t, turns)
	assert.Equal(t, "processTurn", turns.OperationID)
}

func TestDocsRoutes(t *testing.T) {
	h := NewHandler(&fakeProcessor{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/openapi.json")
}
