// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gmatrix/gmatrix-backend/internal/models"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

type ProductService struct {
	db *gorm.DB
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

type CreateProductRequest struct {
	Name         string   `json:"name" validate:"required,product_name,max=255"`
	ImageURL     string   `json:"image_url,omitempty"`
	BackImageURL string   `json:"back_image_url,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
}

type StoreReport struct {
	Name  string   `json:"name" validate:"required,product_name,max=255"`
	Lat   *float64 `json:"lat,omitempty" validate:"omitempty,min=-90,max=90"`
	Lng   *float64 `json:"lng,omitempty" validate:"omitempty,min=-180,max=180"`
	Price *int     `json:"price,omitempty" validate:"omitempty,min=1,max=5"`
}

type ProductSearchParams struct {
	utils.PaginationParams
	MinVotes *int64 `json:"min_votes,omitempty"`
}

// ExistsResult is the answer to "has anyone rated this name before?".
type ExistsResult struct {
	Exists    bool   `json:"exists"`
	ProductID string `json:"product_id,omitempty"`
}

// Exists resolves a candidate display name against existing products. Pure
// read; safe to call speculatively before the user confirms a typed name.
func (s *ProductService) Exists(ctx context.Context, candidateName string) (*ExistsResult, error) {
	if strings.TrimSpace(candidateName) == "" {
		return nil, ErrEmptyProductName
	}

	id := NormalizeProductID(candidateName)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}

	if count == 0 {
		return &ExistsResult{Exists: false}, nil
	}
	return &ExistsResult{Exists: true, ProductID: id}, nil
}

// CreateProduct registers a product under its normalized id. Creation is the
// explicit step the vote aggregator refuses to do implicitly. Two concurrent
// creations of the same name resolve to a single row: the insert uses
// ON CONFLICT DO NOTHING and the loser gets ErrProductExists along with the
// surviving record.
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyProductName
	}

	product := &models.Product{
		ID:           NormalizeProductID(req.Name),
		Name:         strings.TrimSpace(req.Name),
		ImageURL:     req.ImageURL,
		BackImageURL: req.BackImageURL,
		Ingredients:  models.StringList(req.Ingredients),
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(product)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		// Lost the race, or the name was taken all along. Either way the
		// existing record wins.
		var existing models.Product
		if err := s.db.WithContext(ctx).First(&existing, "id = ?", product.ID).Error; err != nil {
			return nil, err
		}
		return &existing, ErrProductExists
	}

	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Preload("Stores").First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// SearchProducts lists products for the matrix view, newest first by default.
func (s *ProductService) SearchProducts(ctx context.Context, params ProductSearchParams) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})

	if params.Search != "" {
		query = query.Where("name LIKE ?", "%"+params.Search+"%")
	}
	if params.MinVotes != nil {
		query = query.Where("vote_count >= ?", *params.MinVotes)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	allowedSortFields := []string{"created_at", "updated_at", "name", "vote_count", "avg_safety", "avg_taste"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	if err := query.Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// UpdateImages attaches uploaded front/back photos to a product.
func (s *ProductService) UpdateImages(ctx context.Context, productID, imageURL, backImageURL string) (*models.Product, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if imageURL != "" {
		product.ImageURL = imageURL
	}
	if backImageURL != "" {
		product.BackImageURL = backImageURL
	}

	if err := s.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ReportStore records a crowdsourced sighting. Entries are keyed by the
// lowercased store name per product; re-reporting updates the existing row
// and LastSeenAt only ever moves forward.
func (s *ProductService) ReportStore(ctx context.Context, productID string, report *StoreReport) (*models.StoreEntry, error) {
	if err := utils.ValidateStruct(report); err != nil {
		return nil, err
	}

	storeKey := strings.ToLower(strings.TrimSpace(report.Name))
	if storeKey == "" {
		return nil, ErrEmptyProductName
	}

	var entry *models.StoreEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		now := time.Now().UTC()

		var existing models.StoreEntry
		err := tx.Where("product_id = ? AND store_key = ?", productID, storeKey).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created := models.StoreEntry{
				ProductID:  productID,
				StoreKey:   storeKey,
				Name:       strings.TrimSpace(report.Name),
				Lat:        report.Lat,
				Lng:        report.Lng,
				Price:      report.Price,
				LastSeenAt: now,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			entry = &created
			return nil

		case err != nil:
			return err
		}

		if now.After(existing.LastSeenAt) {
			existing.LastSeenAt = now
		}
		if report.Lat != nil && report.Lng != nil {
			existing.Lat = report.Lat
			existing.Lng = report.Lng
		}
		if report.Price != nil {
			existing.Price = report.Price
		}

		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		entry = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ProductWithDistance pairs a product with its nearest reporting store.
type ProductWithDistance struct {
	Product    models.Product `json:"product"`
	StoreName  string         `json:"store_name"`
	DistanceKm float64        `json:"distance_km"`
}

// NearbyProducts returns products seen at stores within radiusKm of the
// caller, nearest first.
func (s *ProductService) NearbyProducts(ctx context.Context, lat, lng, radiusKm float64) ([]ProductWithDistance, error) {
	var entries []models.StoreEntry
	err := s.db.WithContext(ctx).
		Where("lat IS NOT NULL AND lng IS NOT NULL").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	// Keep the nearest sighting per product.
	nearest := make(map[string]ProductWithDistance)
	for _, e := range entries {
		d := haversineKm(lat, lng, *e.Lat, *e.Lng)
		if d > radiusKm {
			continue
		}
		if cur, ok := nearest[e.ProductID]; ok && cur.DistanceKm <= d {
			continue
		}
		nearest[e.ProductID] = ProductWithDistance{
			StoreName:  e.Name,
			DistanceKm: d,
		}
	}

	if len(nearest) == 0 {
		return []ProductWithDistance{}, nil
	}

	ids := make([]string, 0, len(nearest))
	for id := range nearest {
		ids = append(ids, id)
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}

	results := make([]ProductWithDistance, 0, len(products))
	for _, p := range products {
		entry := nearest[p.ID]
		entry.Product = p
		results = append(results, entry)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
	return results, nil
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
