package handler

import (
	"net/http"

	"lucky-draw/internal/service"
)

// RankingHandler handles winner feeds and the leaderboard.
type RankingHandler struct {
	queryService   *service.QueryService
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(queryService *service.QueryService, rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{
		queryService:   queryService,
		rankingService: rankingService,
	}
}

// HandleWinners returns recent winners with their user and draw.
func (h *RankingHandler) HandleWinners(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	winners, err := h.queryService.RecentWinners(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(winners))
}

// HandleReels returns recent winners shaped as feed reels.
func (h *RankingHandler) HandleReels(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reels, err := h.queryService.ReelProjection(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reels)
}

// HandleLeaderboard returns the top earners.
func (h *RankingHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, err := h.rankingService.TopEarners(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}
