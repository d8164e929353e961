// internal/handlers/analyze_test.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmatrix/gmatrix-backend/internal/services"
)

func TestAnalyzeExtractsNameAndExistence(t *testing.T) {
	env := newTestEnv(t, &stubModel{reply: `"Oat Milk"`})

	require.Equal(t, http.StatusCreated,
		env.postJSON(t, "/v1/products", gin.H{"name": "Oat Milk"}).Code)

	w := env.postPhoto(t, "/v1/analyze", jpegBytes(), "image/jpeg")
	require.Equal(t, http.StatusOK, w.Code)

	var result AnalyzeResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, "Oat Milk", result.Name)
	assert.True(t, result.Guessed)
	assert.True(t, result.Exists)
	assert.Equal(t, "oat-milk", result.ProductID)
	assert.NotEmpty(t, result.ImageURL)
}

func TestAnalyzeFallsBackOnUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, &stubModel{err: errors.New("upstream down")})

	// Upstream failure is not an HTTP error: the client falls through to
	// manual naming with the placeholder.
	w := env.postPhoto(t, "/v1/analyze", jpegBytes(), "image/jpeg")
	require.Equal(t, http.StatusOK, w.Code)

	var result AnalyzeResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, services.UnnamedProduct, result.Name)
	assert.False(t, result.Guessed)
	assert.False(t, result.Exists)
	assert.Empty(t, result.ProductID)
}

func TestAnalyzeRejectsUnsupportedImage(t *testing.T) {
	env := newTestEnv(t, &stubModel{reply: "whatever"})

	w := env.postPhoto(t, "/v1/analyze", []byte("GIF89a"), "image/gif")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeRequiresPhotoField(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	w := env.postJSON(t, "/v1/analyze", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
