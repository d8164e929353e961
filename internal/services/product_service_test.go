// internal/services/product_service_test.go
package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmatrix/gmatrix-backend/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestExistsIsSideEffectFree(t *testing.T) {
	svc := NewProductService(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := svc.Exists(ctx, "Udi's Bread!")
		require.NoError(t, err)
		assert.False(t, result.Exists)
	}

	var count int64
	svc.db.Model(&models.Product{}).Count(&count)
	assert.Zero(t, count)

	_, err := svc.CreateProduct(ctx, &CreateProductRequest{Name: "Udi's Bread!"})
	require.NoError(t, err)

	result, err := svc.Exists(ctx, "Udi's Bread!")
	require.NoError(t, err)
	assert.True(t, result.Exists)
	assert.Equal(t, "udi-s-bread-", result.ProductID)
}

func TestExistsRejectsBlankNames(t *testing.T) {
	svc := NewProductService(newTestDB(t))

	_, err := svc.Exists(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyProductName)
}

func TestCreateProductConflictReturnsSurvivor(t *testing.T) {
	svc := NewProductService(newTestDB(t))
	ctx := context.Background()

	first, err := svc.CreateProduct(ctx, &CreateProductRequest{Name: "Oat Milk"})
	require.NoError(t, err)

	// Same normalized id, different display name: the first row wins.
	second, err := svc.CreateProduct(ctx, &CreateProductRequest{Name: "OAT MILK"})
	assert.ErrorIs(t, err, ErrProductExists)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Oat Milk", second.Name)

	var count int64
	svc.db.Model(&models.Product{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentCreateResolvesToOneRow(t *testing.T) {
	svc := NewProductService(newTestDB(t))
	ctx := context.Background()

	// Two racing creations of the same name: the insert's conflict clause
	// decides a single winner, the loser gets the surviving row.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateProduct(ctx, &CreateProductRequest{Name: "Oat Milk"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var conflicts, failures int
	for err := range results {
		switch {
		case err == nil:
		case errors.Is(err, ErrProductExists):
			conflicts++
		default:
			failures++
		}
	}
	assert.Zero(t, failures)
	assert.Equal(t, 1, conflicts)

	var count int64
	svc.db.Model(&models.Product{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestReportStoreUpsertsByKey(t *testing.T) {
	svc := NewProductService(newTestDB(t))
	ctx := context.Background()
	product := createTestProduct(t, svc.db, "Sourdough")

	first, err := svc.ReportStore(ctx, product.ID, &StoreReport{Name: "Corner Market"})
	require.NoError(t, err)
	assert.Equal(t, "corner market", first.StoreKey)
	assert.Nil(t, first.Price)

	// Re-report with price and coordinates updates in place.
	second, err := svc.ReportStore(ctx, product.ID, &StoreReport{
		Name:  "CORNER MARKET",
		Lat:   floatPtr(52.52),
		Lng:   floatPtr(13.405),
		Price: intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, first.StoreKey, second.StoreKey)
	require.NotNil(t, second.Price)
	assert.Equal(t, 3, *second.Price)

	var count int64
	svc.db.Model(&models.StoreEntry{}).Where("product_id = ?", product.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestReportStoreLastSeenOnlyMovesForward(t *testing.T) {
	svc := NewProductService(newTestDB(t))
	ctx := context.Background()
	product := createTestProduct(t, svc.db, "Hummus")

	entry, err := svc.ReportStore(ctx, product.ID, &StoreReport{Name: "Deli"})
	require.NoError(t, err)

	// Push last_seen_at into the future; a new report must not rewind it.
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, svc.db.Model(&models.StoreEntry{}).
		Where("product_id = ? AND store_key = ?", product.ID, entry.StoreKey).
		Update("last_seen_at", future).Error)

	updated, err := svc.ReportStore(ctx, product.ID, &StoreReport{Name: "Deli", Price: intPtr(2)})
	require.NoError(t, err)
	assert.False(t, updated.LastSeenAt.Before(future.Add(-time.Second)))
	require.NotNil(t, updated.Price)
	assert.Equal(t, 2, *updated.Price)
}

func TestReportStoreUnknownProduct(t *testing.T) {
	svc := NewProductService(newTestDB(t))

	_, err := svc.ReportStore(context.Background(), "missing", &StoreReport{Name: "Anywhere"})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestNearbyProducts(t *testing.T) {
	svc := NewProductService(newTestDB(t))
	ctx := context.Background()

	near := createTestProduct(t, svc.db, "Near Snack")
	far := createTestProduct(t, svc.db, "Far Snack")
	nowhere := createTestProduct(t, svc.db, "Unseen Snack")
	_ = nowhere

	// Berlin city center vs. roughly 5km and 300km away.
	_, err := svc.ReportStore(ctx, near.ID, &StoreReport{
		Name: "Mitte Kiosk", Lat: floatPtr(52.53), Lng: floatPtr(13.41),
	})
	require.NoError(t, err)
	_, err = svc.ReportStore(ctx, far.ID, &StoreReport{
		Name: "Munich Depot", Lat: floatPtr(48.14), Lng: floatPtr(11.58),
	})
	require.NoError(t, err)

	results, err := svc.NearbyProducts(ctx, 52.52, 13.405, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, near.ID, results[0].Product.ID)
	assert.Equal(t, "Mitte Kiosk", results[0].StoreName)
	assert.Less(t, results[0].DistanceKm, 10.0)
}

func TestNearbyProductsKeepsNearestSighting(t *testing.T) {
	svc := NewProductService(newTestDB(t))
	ctx := context.Background()
	product := createTestProduct(t, svc.db, "Juice")

	_, err := svc.ReportStore(ctx, product.ID, &StoreReport{
		Name: "Close Shop", Lat: floatPtr(52.521), Lng: floatPtr(13.406),
	})
	require.NoError(t, err)
	_, err = svc.ReportStore(ctx, product.ID, &StoreReport{
		Name: "Farther Shop", Lat: floatPtr(52.58), Lng: floatPtr(13.5),
	})
	require.NoError(t, err)

	results, err := svc.NearbyProducts(ctx, 52.52, 13.405, 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Close Shop", results[0].StoreName)
}

func TestSearchProductsFilters(t *testing.T) {
	svc := NewProductService(newTestDB(t))
	ctx := context.Background()

	popular := createTestProduct(t, svc.db, "Popular Bar")
	createTestProduct(t, svc.db, "Obscure Bar")
	require.NoError(t, svc.db.Model(&models.Product{}).
		Where("id = ?", popular.ID).
		Update("vote_count", 12).Error)

	minVotes := int64(10)
	params := ProductSearchParams{MinVotes: &minVotes}
	params.Page = 1
	params.Limit = 20

	products, total, err := svc.SearchProducts(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, products, 1)
	assert.Equal(t, popular.ID, products[0].ID)
}
