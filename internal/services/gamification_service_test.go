// internal/services/gamification_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmatrix/gmatrix-backend/internal/models"
)

func TestProfileCreatedLazily(t *testing.T) {
	db := newTestDB(t)
	svc := NewGamificationService(db, testGamificationConfig())
	ctx := context.Background()
	user := createTestUser(t, db, models.UserTypeRegistered)

	_, err := svc.GetProfile(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	delta, err := svc.ApplyVoteEffects(ctx, user.ID, VoteContext{})
	require.NoError(t, err)
	assert.Equal(t, 10, delta.PointsAwarded)

	profile, err := svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, profile.Points)
	assert.Equal(t, 1, profile.TotalVotes)
	assert.Equal(t, 1, profile.CurrentStreak)
}

func TestPointBonuses(t *testing.T) {
	db := newTestDB(t)
	svc := NewGamificationService(db, testGamificationConfig())
	ctx := context.Background()
	user := createTestUser(t, db, models.UserTypeRegistered)

	delta, err := svc.ApplyVoteEffects(ctx, user.ID, VoteContext{
		IsNewProduct: true,
		HasGps:       true,
		HasStoreTag:  true,
		StoreKey:     "corner market",
	})
	require.NoError(t, err)

	// base 10 + new product 25 + gps 15 + store tag 5
	assert.Equal(t, 55, delta.PointsAwarded)

	profile, err := svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.NewProductVotes)
	assert.Equal(t, 1, profile.GpsVotes)
	assert.True(t, profile.StoresTagged.Contains("corner market"))
}

func TestStoreTaggedOnceDeduped(t *testing.T) {
	db := newTestDB(t)
	svc := NewGamificationService(db, testGamificationConfig())
	ctx := context.Background()
	user := createTestUser(t, db, models.UserTypeRegistered)

	for i := 0; i < 3; i++ {
		_, err := svc.ApplyVoteEffects(ctx, user.ID, VoteContext{HasStoreTag: true, StoreKey: "deli"})
		require.NoError(t, err)
	}

	profile, err := svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, profile.StoresTagged, 1)
}

func TestStreakRules(t *testing.T) {
	db := newTestDB(t)
	svc := NewGamificationService(db, testGamificationConfig())
	ctx := context.Background()
	user := createTestUser(t, db, models.UserTypeRegistered)

	setLastVote := func(when time.Time) {
		require.NoError(t, db.Model(&models.UserProfile{}).
			Where("user_id = ?", user.ID).
			Update("last_vote_date", when).Error)
	}

	// First vote starts at 1.
	delta, err := svc.ApplyVoteEffects(ctx, user.ID, VoteContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, delta.CurrentStreak)

	// Same day: unchanged.
	delta, err = svc.ApplyVoteEffects(ctx, user.ID, VoteContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, delta.CurrentStreak)

	// Yesterday: extends.
	setLastVote(time.Now().UTC().Add(-24 * time.Hour))
	delta, err = svc.ApplyVoteEffects(ctx, user.ID, VoteContext{})
	require.NoError(t, err)
	assert.Equal(t, 2, delta.CurrentStreak)

	// Three-day gap: resets to 1, longest keeps the max.
	setLastVote(time.Now().UTC().Add(-3 * 24 * time.Hour))
	delta, err = svc.ApplyVoteEffects(ctx, user.ID, VoteContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, delta.CurrentStreak)
	assert.Equal(t, 2, delta.LongestStreak)
}

func TestBadgeThresholds(t *testing.T) {
	db := newTestDB(t)
	cfg := testGamificationConfig()
	cfg.ScoutBadgeVotes = 3
	svc := NewGamificationService(db, testGamificationConfig())
	svc.SetBadgeRules(defaultBadgeRules(cfg))
	ctx := context.Background()
	user := createTestUser(t, db, models.UserTypeRegistered)

	var unlocked []string
	for i := 0; i < 3; i++ {
		delta, err := svc.ApplyVoteEffects(ctx, user.ID, VoteContext{})
		require.NoError(t, err)
		unlocked = append(unlocked, delta.NewBadges...)
	}

	assert.Equal(t, []string{"scout"}, unlocked)

	// Already unlocked: never awarded twice.
	delta, err := svc.ApplyVoteEffects(ctx, user.ID, VoteContext{})
	require.NoError(t, err)
	assert.Empty(t, delta.NewBadges)
}

func TestInjectedBadgeRules(t *testing.T) {
	db := newTestDB(t)
	svc := NewGamificationService(db, testGamificationConfig())
	svc.SetBadgeRules([]BadgeRule{
		{
			ID: "first-timer",
			Predicate: func(p *models.UserProfile) bool {
				return p.TotalVotes >= 1
			},
		},
	})
	ctx := context.Background()
	user := createTestUser(t, db, models.UserTypeRegistered)

	delta, err := svc.ApplyVoteEffects(ctx, user.ID, VoteContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first-timer"}, delta.NewBadges)
}
