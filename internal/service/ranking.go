package service

import (
	"context"

	"lucky-draw/internal/model"
	"lucky-draw/internal/repository"
)

// Leaderboard limits.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// RankingService handles ranking and leaderboard operations.
type RankingService struct {
	store repository.UserStore
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(store repository.UserStore) *RankingService {
	return &RankingService{store: store}
}

// TopEarners retrieves the users with the highest prize earnings.
func (s *RankingService) TopEarners(ctx context.Context, limit int) ([]*model.User, error) {
	return s.store.ListTopEarners(ctx, clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit))
}
