package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lucky-draw/internal/model"
	"lucky-draw/internal/repository"
)

// Winner listing limits.
const (
	DefaultWinnersLimit = 10
	MaxWinnersLimit     = 100
	DefaultReelsLimit   = 20
)

// CosmeticSource feeds the presentation-only reel counters.
type CosmeticSource interface {
	IntN(n int) int
	Float64() float64
}

type globalCosmetic struct{}

func (globalCosmetic) IntN(n int) int { return rand.IntN(n) }
func (globalCosmetic) Float64() float64 { return rand.Float64() }

// Reel is a winner announcement shaped for the social feed. Likes,
// Comments, Shares, IsLiked and CelebrationText are decoration and carry no
// financial meaning.
type Reel struct {
	ID              int64  `json:"id"`
	WinnerName      string `json:"winnerName"`
	WinnerImage     string `json:"winnerImage,omitempty"`
	Prize           string `json:"prize"`
	PrizeAmount     string `json:"prizeAmount"`
	DrawTitle       string `json:"drawTitle"`
	VideoURL        string `json:"videoUrl"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	Likes           int    `json:"likes"`
	Comments        int    `json:"comments"`
	Shares          int    `json:"shares"`
	IsLiked         bool   `json:"isLiked"`
	CelebrationText string `json:"celebrationText"`
	WinDate         string `json:"winDate"`
	IsVIP           bool   `json:"isVip"`
}

var celebrationTemplates = []string{
	"I can't believe I won! Thank you Lucky11! 🎉🎉🎉",
	"Dreams do come true! Lucky11 made my day special! 💸✨",
	"First time participating and I won! Lucky11 is amazing! 🚀💻",
	"This is incredible! %[1]s winner here! 🏆",
	"%[2]s richer! Lucky11 you're the best! 💰",
	"Feeling blessed! Lucky11 changed my life! 🙏✨",
	"What a surprise! Didn't expect to win %[1]s! 🎊",
	"Lucky11 made my dreams come true! Thank you! 💫",
	"From hoping to winning! Lucky11 is pure magic! ✨",
	"This is unreal! Lucky11 you made my year! 🎉",
}

// QueryService serves read-only views over draws and winners.
type QueryService struct {
	store    repository.Store
	cosmetic CosmeticSource
	now      Clock
}

// NewQueryService creates a new QueryService instance.
func NewQueryService(store repository.Store, cosmetic CosmeticSource, now Clock) *QueryService {
	if cosmetic == nil {
		cosmetic = globalCosmetic{}
	}
	if now == nil {
		now = time.Now
	}
	return &QueryService{store: store, cosmetic: cosmetic, now: now}
}

// ActiveDraws lists draws that are active and not completed, soonest first.
func (s *QueryService) ActiveDraws(ctx context.Context) ([]*model.Draw, error) {
	return s.store.ListActiveDraws(ctx)
}

// Draw returns a single draw.
func (s *QueryService) Draw(ctx context.Context, drawID int64) (*model.Draw, error) {
	return s.store.GetDraw(ctx, drawID)
}

// RecentWinners returns winners with their user and draw, newest first.
func (s *QueryService) RecentWinners(ctx context.Context, limit int) ([]*model.WinnerDetail, error) {
	return s.store.ListRecentWinners(ctx, clampLimit(limit, DefaultWinnersLimit, MaxWinnersLimit))
}

// ReelProjection maps recent winners into feed reels.
func (s *QueryService) ReelProjection(ctx context.Context, limit int) ([]*Reel, error) {
	winners, err := s.store.ListRecentWinners(ctx, clampLimit(limit, DefaultReelsLimit, MaxWinnersLimit))
	if err != nil {
		return nil, err
	}

	now := s.now()
	reels := make([]*Reel, 0, len(winners))
	for i, w := range winners {
		reels = append(reels, s.reel(i, w, now))
	}
	return reels, nil
}

func (s *QueryService) reel(index int, w *model.WinnerDetail, now time.Time) *Reel {
	prize := formatRupees(w.PrizeAmount)

	reel := &Reel{
		ID:          w.ID,
		WinnerName:  strings.TrimSpace(w.User.DisplayName("Winner")),
		Prize:       w.Draw.Title,
		PrizeAmount: prize,
		DrawTitle:   w.Draw.Title,
		WinDate:     timeAgo(w.AnnouncedAt, now),
		IsVIP:       w.User.IsVIP,
	}
	if reel.Prize == "" {
		reel.Prize = "Prize"
	}
	if w.User.ProfileImageURL != nil && *w.User.ProfileImageURL != "" {
		reel.WinnerImage = *w.User.ProfileImageURL
	} else {
		reel.WinnerImage = fmt.Sprintf("https://images.unsplash.com/photo-%d?auto=format&fit=crop&w=100&h=100", 507003211169+index)
	}
	if w.CelebrationVideoURL != nil {
		reel.VideoURL = *w.CelebrationVideoURL
	}
	if w.Draw.PrizeImageURL != nil && *w.Draw.PrizeImageURL != "" {
		reel.ThumbnailURL = *w.Draw.PrizeImageURL
	} else {
		reel.ThumbnailURL = fmt.Sprintf("https://images.unsplash.com/photo-%d?auto=format&fit=crop&w=400&h=600", 1511707171634+index)
	}

	reel.Likes = s.cosmetic.IntN(2000) + 500
	reel.Comments = s.cosmetic.IntN(300) + 50
	reel.Shares = s.cosmetic.IntN(100) + 20
	reel.IsLiked = s.cosmetic.Float64() > 0.7
	reel.CelebrationText = celebrationText(celebrationTemplates[s.cosmetic.IntN(len(celebrationTemplates))], w.Draw.Title, prize)
	return reel
}

func celebrationText(template, drawTitle, prize string) string {
	if !strings.Contains(template, "%[") {
		return template
	}
	return fmt.Sprintf(template, drawTitle, prize)
}

// timeAgo renders the age of t relative to now in whole minutes, hours or days.
func timeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		diff = 0
	}
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff/time.Hour))
	default:
		return fmt.Sprintf("%d days ago", int(diff/(24*time.Hour)))
	}
}

// formatRupees renders an amount with thousands separators, dropping a zero
// fraction: 1299.50 -> "₹1,299.5", 999.00 -> "₹999".
func formatRupees(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	s := amount.Abs().String()

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := "₹"
	if neg {
		out += "-"
	}
	out += b.String()
	if frac != "" {
		out += "." + frac
	}
	return out
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
