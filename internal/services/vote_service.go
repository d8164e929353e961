// internal/services/vote_service.go
package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gmatrix/gmatrix-backend/internal/events"
	"github.com/gmatrix/gmatrix-backend/internal/models"
)

// VoteService maintains the per-product running averages. All aggregate
// mutations go through its transactions; the product row is the only
// contended resource, so each write takes a row lock before touching the
// averages.
type VoteService struct {
	db           *gorm.DB
	gamification *GamificationService
	bus          *events.Bus
}

func NewVoteService(db *gorm.DB, gamification *GamificationService, bus *events.Bus) *VoteService {
	return &VoteService{
		db:           db,
		gamification: gamification,
		bus:          bus,
	}
}

// Rating is one user's position on the matrix, with an optional price vote.
type Rating struct {
	Safety float64 `json:"safety" validate:"min=0,max=100"`
	Taste  float64 `json:"taste" validate:"min=0,max=100"`
	Price  *int    `json:"price,omitempty" validate:"omitempty,min=1,max=5"`
}

// SubmitVoteOptions carries the gamification context the handler gathered
// alongside the vote (store report, GPS tag).
type SubmitVoteOptions struct {
	StoreKey string
	HasGps   bool
}

type VoteResult struct {
	Product *models.Product      `json:"product"`
	Vote    *models.Vote         `json:"vote"`
	Delta   *models.ProfileDelta `json:"delta,omitempty"`
}

// Validate checks the rating ranges. Exported so callers can reject a bad
// rating before committing any side effects bundled with it.
func (r Rating) Validate() error {
	if r.Safety < 0 || r.Safety > 100 || r.Taste < 0 || r.Taste > 100 {
		return ErrInvalidRating
	}
	if r.Price != nil && (*r.Price < 1 || *r.Price > 5) {
		return ErrInvalidRating
	}
	return nil
}

// lockForUpdate takes a row lock on Postgres. The sqlite test harness has no
// FOR UPDATE; its transactions serialize writers anyway.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// SubmitVote incorporates one user's rating into the product aggregate,
// creating the vote on first submission and revising it in place afterwards.
// The read-modify-write runs in a single transaction so concurrent voters
// cannot lose updates. The product must already exist; SubmitVote never
// creates products.
//
// Gamification runs after the vote is durable and never fails the vote:
// ledger errors are logged and swallowed.
func (s *VoteService) SubmitVote(ctx context.Context, productID string, userID uuid.UUID, rating Rating, isRegistered bool, opts SubmitVoteOptions) (*VoteResult, error) {
	if err := rating.Validate(); err != nil {
		return nil, err
	}

	result := &VoteResult{}
	isNewProduct := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := lockForUpdate(tx).First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		isNewProduct = product.VoteCount == 0
		now := time.Now().UTC()

		var existing models.Vote
		err := tx.Where("product_id = ? AND user_id = ?", productID, userID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First vote: extend the mean.
			n := float64(product.VoteCount)
			product.AvgSafety = (product.AvgSafety*n + rating.Safety) / (n + 1)
			product.AvgTaste = (product.AvgTaste*n + rating.Taste) / (n + 1)
			product.VoteCount++
			if isRegistered {
				product.RegisteredVoteCount++
			}
			if rating.Price != nil {
				m := float64(product.PriceVoteCount)
				product.AvgPrice = (product.AvgPrice*m + float64(*rating.Price)) / (m + 1)
				product.PriceVoteCount++
			}

			vote := models.Vote{
				ProductID:    productID,
				UserID:       userID,
				Safety:       rating.Safety,
				Taste:        rating.Taste,
				Price:        rating.Price,
				IsRegistered: isRegistered,
				VotedAt:      now,
			}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			result.Vote = &vote

		case err != nil:
			return err

		default:
			// Revision ("fine-tune"): count unchanged, shift the mean by
			// the delta instead of recomputing.
			n := float64(product.VoteCount)
			product.AvgSafety += (rating.Safety - existing.Safety) / n
			product.AvgTaste += (rating.Taste - existing.Taste) / n

			switch {
			case existing.Price == nil && rating.Price != nil:
				m := float64(product.PriceVoteCount)
				product.AvgPrice = (product.AvgPrice*m + float64(*rating.Price)) / (m + 1)
				product.PriceVoteCount++
			case existing.Price != nil && rating.Price == nil:
				if product.PriceVoteCount <= 1 {
					product.AvgPrice = 0
					product.PriceVoteCount = 0
				} else {
					m := float64(product.PriceVoteCount)
					product.AvgPrice = (product.AvgPrice*m - float64(*existing.Price)) / (m - 1)
					product.PriceVoteCount--
				}
			case existing.Price != nil && rating.Price != nil:
				product.AvgPrice += (float64(*rating.Price) - float64(*existing.Price)) / float64(product.PriceVoteCount)
			}

			existing.Safety = rating.Safety
			existing.Taste = rating.Taste
			existing.Price = rating.Price
			existing.VotedAt = now
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			result.Vote = &existing
		}

		if err := tx.Save(&product).Error; err != nil {
			return err
		}
		result.Product = &product
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The vote is authoritative from here on. Side effects are best-effort.
	if s.gamification != nil && isRegistered {
		delta, gerr := s.gamification.ApplyVoteEffects(ctx, userID, VoteContext{
			IsNewProduct: isNewProduct,
			HasGps:       opts.HasGps,
			HasStoreTag:  opts.StoreKey != "",
			StoreKey:     opts.StoreKey,
		})
		if gerr != nil {
			logrus.WithError(gerr).WithField("user_id", userID).
				Warn("Gamification ledger failed; vote is already recorded")
		} else {
			result.Delta = delta
		}
	}

	s.publish(result.Product)
	return result, nil
}

// GetUserVote returns the caller's existing vote for a product, if any.
func (s *VoteService) GetUserVote(ctx context.Context, productID string, userID uuid.UUID) (*models.Vote, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		First(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoteNotFound
		}
		return nil, err
	}
	return &vote, nil
}

// DeleteVote removes a user's vote and backs its contribution out of the
// aggregate. Deleting the last vote resets the averages to zero. Admin only.
func (s *VoteService) DeleteVote(ctx context.Context, productID string, userID uuid.UUID) (*models.Product, error) {
	var updated *models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := lockForUpdate(tx).First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		var vote models.Vote
		if err := tx.Where("product_id = ? AND user_id = ?", productID, userID).First(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVoteNotFound
			}
			return err
		}

		if product.VoteCount <= 1 {
			product.AvgSafety = 0
			product.AvgTaste = 0
			product.VoteCount = 0
			product.RegisteredVoteCount = 0
		} else {
			n := float64(product.VoteCount)
			product.AvgSafety = (product.AvgSafety*n - vote.Safety) / (n - 1)
			product.AvgTaste = (product.AvgTaste*n - vote.Taste) / (n - 1)
			product.VoteCount--
			if vote.IsRegistered && product.RegisteredVoteCount > 0 {
				product.RegisteredVoteCount--
			}
		}

		if vote.Price != nil {
			if product.PriceVoteCount <= 1 {
				product.AvgPrice = 0
				product.PriceVoteCount = 0
			} else {
				m := float64(product.PriceVoteCount)
				product.AvgPrice = (product.AvgPrice*m - float64(*vote.Price)) / (m - 1)
				product.PriceVoteCount--
			}
		}

		if err := tx.Delete(&vote).Error; err != nil {
			return err
		}
		if err := tx.Save(&product).Error; err != nil {
			return err
		}
		updated = &product
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(updated)
	return updated, nil
}

// Recalculate rebuilds a product's aggregates from its vote rows. The
// incremental delta updates on the hot path can drift over many revisions;
// this is the corrective full recompute. With decayHalfLifeDays > 0 votes
// are weighted by 0.5^(age/halfLife), favoring recent opinion; with 0 the
// result must converge with the incremental path.
func (s *VoteService) Recalculate(ctx context.Context, productID string, decayHalfLifeDays float64) (*models.Product, error) {
	var updated *models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := lockForUpdate(tx).First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		var votes []models.Vote
		if err := tx.Where("product_id = ?", productID).Find(&votes).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		var safetySum, tasteSum, weightSum float64
		var priceSum, priceWeightSum float64
		var registered, priceVotes int64

		for _, v := range votes {
			weight := 1.0
			if decayHalfLifeDays > 0 {
				ageDays := now.Sub(v.VotedAt).Hours() / 24
				weight = math.Pow(0.5, ageDays/decayHalfLifeDays)
			}
			safetySum += v.Safety * weight
			tasteSum += v.Taste * weight
			weightSum += weight
			if v.IsRegistered {
				registered++
			}
			if v.Price != nil {
				priceSum += float64(*v.Price) * weight
				priceWeightSum += weight
				priceVotes++
			}
		}

		product.VoteCount = int64(len(votes))
		product.RegisteredVoteCount = registered
		product.PriceVoteCount = priceVotes
		if weightSum > 0 {
			product.AvgSafety = safetySum / weightSum
			product.AvgTaste = tasteSum / weightSum
		} else {
			product.AvgSafety = 0
			product.AvgTaste = 0
		}
		if priceWeightSum > 0 {
			product.AvgPrice = priceSum / priceWeightSum
		} else {
			product.AvgPrice = 0
		}

		if err := tx.Save(&product).Error; err != nil {
			return err
		}
		updated = &product
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(updated)
	return updated, nil
}

func (s *VoteService) publish(product *models.Product) {
	if s.bus == nil || product == nil {
		return
	}
	s.bus.PublishProductUpdate(events.ProductUpdate{
		ProductID:           product.ID,
		AvgSafety:           product.AvgSafety,
		AvgTaste:            product.AvgTaste,
		AvgPrice:            product.AvgPrice,
		VoteCount:           product.VoteCount,
		RegisteredVoteCount: product.RegisteredVoteCount,
		PriceVoteCount:      product.PriceVoteCount,
		UpdatedAt:           product.UpdatedAt,
	})
}
