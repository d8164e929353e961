// internal/handlers/vote_test.go
package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmatrix/gmatrix-backend/internal/models"
)

func TestSubmitVoteHandler(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	require.Equal(t, http.StatusCreated,
		env.postJSON(t, "/v1/products", gin.H{"name": "Oat Milk"}).Code)

	w := env.postJSON(t, "/v1/products/oat-milk/votes", gin.H{
		"safety": 80, "taste": 60, "price": 3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Product models.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, int64(1), result.Product.VoteCount)
	assert.InDelta(t, 80.0, result.Product.AvgSafety, 1e-9)
	assert.InDelta(t, 60.0, result.Product.AvgTaste, 1e-9)
	assert.InDelta(t, 3.0, result.Product.AvgPrice, 1e-9)
}

func TestSubmitVoteUnknownProduct(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	w := env.postJSON(t, "/v1/products/missing/votes", gin.H{"safety": 50, "taste": 50})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitVoteInvalidRatingLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	require.Equal(t, http.StatusCreated,
		env.postJSON(t, "/v1/products", gin.H{"name": "Oat Milk"}).Code)

	// An out-of-range rating must not persist the bundled store sighting.
	w := env.postJSON(t, "/v1/products/oat-milk/votes", gin.H{
		"safety": 200, "taste": 50,
		"store": gin.H{"name": "Corner Market", "lat": 52.52, "lng": 13.405},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var stores, votes int64
	env.db.Model(&models.StoreEntry{}).Count(&stores)
	env.db.Model(&models.Vote{}).Count(&votes)
	assert.Zero(t, stores)
	assert.Zero(t, votes)

	var product models.Product
	require.NoError(t, env.db.First(&product, "id = ?", "oat-milk").Error)
	assert.Zero(t, product.VoteCount)
}
