package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"lucky-draw/internal/config"
	"lucky-draw/internal/pkg/apperr"
	"lucky-draw/internal/pkg/metrics"
	"lucky-draw/internal/service"
)

// Services groups the services the API serves.
type Services struct {
	Accounts       *service.AccountService
	Ledger         *service.LedgerService
	Participations *service.ParticipationService
	Settlement     *service.SettlementService
	Query          *service.QueryService
	Ranking        *service.RankingService
}

// HealthFunc reports whether the store is reachable.
type HealthFunc func(ctx context.Context) error

// NewRouter builds the HTTP API. health may be nil.
func NewRouter(cfg *config.Config, svc Services, health HealthFunc) http.Handler {
	accounts := NewAccountHandler(svc.Accounts)
	draws := NewDrawHandler(svc.Query, svc.Participations)
	shop := NewShopHandler(svc.Ledger)
	ranking := NewRankingHandler(svc.Query, svc.Ranking)
	admin := NewAdminHandler(svc.Settlement, svc.Ledger, svc.Accounts)

	isAdmin := cfg.IsAdmin
	adminOnly := func(next http.HandlerFunc) http.HandlerFunc {
		return requireAdmin(isAdmin, next)
	}

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler(health)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/user", requireUser(accounts.HandleCurrentUser)).Methods(http.MethodGet)
	api.HandleFunc("/checkin", requireUser(accounts.HandleCheckIn)).Methods(http.MethodPost)
	api.HandleFunc("/checkin", requireUser(accounts.HandleCheckInStatus)).Methods(http.MethodGet)

	api.HandleFunc("/draws", draws.HandleListDraws).Methods(http.MethodGet)
	api.HandleFunc("/draws", adminOnly(admin.HandleCreateDraw)).Methods(http.MethodPost)
	api.HandleFunc("/draws/{id:[0-9]+}", draws.HandleGetDraw).Methods(http.MethodGet)
	api.HandleFunc("/draws/{id:[0-9]+}", adminOnly(admin.HandleUpdateDraw)).Methods(http.MethodPatch)
	api.HandleFunc("/draws/{id:[0-9]+}/participations", requireUser(draws.HandleParticipate)).Methods(http.MethodPost)
	api.HandleFunc("/draws/{id:[0-9]+}/select-winner", adminOnly(admin.HandleSelectWinner)).Methods(http.MethodPost)

	api.HandleFunc("/participations", requireUser(draws.HandleCreateParticipation)).Methods(http.MethodPost)
	api.HandleFunc("/participations", requireUser(draws.HandleListParticipations)).Methods(http.MethodGet)

	api.HandleFunc("/coins/packages", shop.HandlePackages).Methods(http.MethodGet)
	api.HandleFunc("/coins/purchase", requireUser(shop.HandlePurchase)).Methods(http.MethodPost)
	api.HandleFunc("/transactions", requireUser(shop.HandleTransactions)).Methods(http.MethodGet)

	api.HandleFunc("/winners", ranking.HandleWinners).Methods(http.MethodGet)
	api.HandleFunc("/winners/reels", ranking.HandleReels).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", ranking.HandleLeaderboard).Methods(http.MethodGet)

	api.HandleFunc("/admin/users/{id}/coins", adminOnly(admin.HandleGrantCoins)).Methods(http.MethodPost)
	api.HandleFunc("/admin/users/{id}", adminOnly(admin.HandleUpdateUser)).Methods(http.MethodPatch)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, apperr.NotFound("route", req.URL.Path))
	})

	return corsHandler(cfg.CORS.AllowedOrigins, requestID(recoverer(accessLog(r))))
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				writeError(w, r, apperr.Unavailable("health check", err))
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
