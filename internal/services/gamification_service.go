// internal/services/gamification_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/models"
)

// GamificationService maintains the scout-point ledger. It runs strictly as
// a side effect of a vote being recorded: it never blocks or rejects the
// vote, and it is skipped entirely for guest identities.
type GamificationService struct {
	db     *gorm.DB
	cfg    config.GamificationConfig
	badges []BadgeRule
}

// VoteContext describes what the vote carried, for bonus calculation.
type VoteContext struct {
	IsNewProduct bool
	HasGps       bool
	HasStoreTag  bool
	StoreKey     string
}

// BadgeRule unlocks a badge when its predicate first becomes true. The rule
// table is data: thresholds come from configuration, not code.
type BadgeRule struct {
	ID        string
	Predicate func(p *models.UserProfile) bool
}

func NewGamificationService(db *gorm.DB, cfg config.GamificationConfig) *GamificationService {
	return &GamificationService{
		db:     db,
		cfg:    cfg,
		badges: defaultBadgeRules(cfg),
	}
}

func defaultBadgeRules(cfg config.GamificationConfig) []BadgeRule {
	return []BadgeRule{
		{
			ID: "scout",
			Predicate: func(p *models.UserProfile) bool {
				return p.TotalVotes >= cfg.ScoutBadgeVotes
			},
		},
		{
			ID: "explorer",
			Predicate: func(p *models.UserProfile) bool {
				return p.NewProductVotes >= cfg.ExplorerBadgeNew
			},
		},
		{
			ID: "mapper",
			Predicate: func(p *models.UserProfile) bool {
				return len(p.StoresTagged) >= cfg.MapperBadgeStores
			},
		},
		{
			ID: "streak",
			Predicate: func(p *models.UserProfile) bool {
				return p.CurrentStreak >= cfg.StreakBadgeDays
			},
		},
	}
}

// SetBadgeRules replaces the badge table. Tests and future policy changes
// inject their own rules here.
func (s *GamificationService) SetBadgeRules(rules []BadgeRule) {
	s.badges = rules
}

// ApplyVoteEffects awards points, updates counters and streaks, and unlocks
// any newly earned badges for a registered user's vote. The profile is
// created lazily on the first call for a user.
func (s *GamificationService) ApplyVoteEffects(ctx context.Context, userID uuid.UUID, vctx VoteContext) (*models.ProfileDelta, error) {
	delta := &models.ProfileDelta{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := s.loadOrCreateProfile(tx, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		points := s.cfg.BasePoints
		if vctx.IsNewProduct {
			points += s.cfg.NewProductBonus
		}
		if vctx.HasGps {
			points += s.cfg.GpsBonus
		}
		if vctx.HasStoreTag {
			points += s.cfg.StoreTagBonus
		}

		profile.Points += points
		profile.TotalVotes++
		if vctx.IsNewProduct {
			profile.NewProductVotes++
		}
		if vctx.HasGps {
			profile.GpsVotes++
		}
		if vctx.HasStoreTag && vctx.StoreKey != "" && !profile.StoresTagged.Contains(vctx.StoreKey) {
			profile.StoresTagged = append(profile.StoresTagged, vctx.StoreKey)
		}

		s.advanceStreak(profile, now)

		var newBadges []string
		for _, rule := range s.badges {
			if profile.Badges.Contains(rule.ID) {
				continue
			}
			if rule.Predicate(profile) {
				profile.Badges = append(profile.Badges, rule.ID)
				newBadges = append(newBadges, rule.ID)
			}
		}

		if err := tx.Save(profile).Error; err != nil {
			return err
		}

		delta.PointsAwarded = points
		delta.NewBadges = newBadges
		delta.CurrentStreak = profile.CurrentStreak
		delta.LongestStreak = profile.LongestStreak
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delta, nil
}

// GetProfile returns the gamification profile, or ErrUserNotFound if the
// user has never voted.
func (s *GamificationService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *GamificationService) loadOrCreateProfile(tx *gorm.DB, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := tx.First(&profile, "user_id = ?", userID).Error
	if err == nil {
		return &profile, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	profile = models.UserProfile{UserID: userID}
	if err := tx.Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// advanceStreak applies the daily streak rule: same-day votes leave the
// streak unchanged, a vote exactly one day after the last extends it, and a
// longer gap (or first vote) resets it to 1. LongestStreak tracks the max.
func (s *GamificationService) advanceStreak(profile *models.UserProfile, now time.Time) {
	today := now.Truncate(24 * time.Hour)

	switch {
	case profile.LastVoteDate == nil:
		profile.CurrentStreak = 1
	default:
		lastDay := profile.LastVoteDate.UTC().Truncate(24 * time.Hour)
		gap := today.Sub(lastDay)
		switch {
		case gap == 0:
			// Same day: streak unchanged.
		case gap == 24*time.Hour:
			profile.CurrentStreak++
		default:
			profile.CurrentStreak = 1
		}
	}

	if profile.CurrentStreak > profile.LongestStreak {
		profile.LongestStreak = profile.CurrentStreak
	}
	profile.LastVoteDate = &now
}
