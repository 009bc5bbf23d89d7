package httptransport

import (
	"expvar"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"amoria/internal/app/chatroom"
	"amoria/internal/app/credits"
	"amoria/internal/app/matching"
	"amoria/internal/config"
)

// Services bundles the app services the router exposes. They are built
// in main so tests can wire them over the in-memory store.
type Services struct {
	Credits   *credits.Service
	Matching  *matching.Service
	Chatrooms *chatroom.Service
}

func NewRouter(svcs Services, st AdminStore, db Pinger, cfg config.ServerConfig) *chi.Mux {
	matchHandlers := NewMatchHandlers(svcs.Matching)
	creditHandlers := NewCreditHandlers(svcs.Credits)
	chatHandlers := NewChatroomHandlers(svcs.Chatrooms)
	adminHandlers := NewAdminHandlers(st, db, svcs.Credits, svcs.Matching)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Post("/matches/request", matchHandlers.Request())
		r.Get("/matches", matchHandlers.Current())
		r.Post("/matches/consume", matchHandlers.Consume())
		r.Get("/matches/breakdown", matchHandlers.Breakdown())
		r.Get("/matches/summary", matchHandlers.Summary())
		r.Get("/matches/history", matchHandlers.History())

		r.Post("/chatrooms", chatHandlers.Create())
		r.Get("/chatrooms", chatHandlers.List())
		r.Get("/chatrooms/{chatroom_id}", chatHandlers.Get())
		r.Post("/chatrooms/{chatroom_id}/end", chatHandlers.End())

		r.Get("/credits/balance", creditHandlers.Balance())
		r.Get("/credits/transactions", creditHandlers.Transactions())
		r.Get("/messages/status", creditHandlers.MessageStatus())
		r.Post("/messages/charge", creditHandlers.ChargeMessage())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/admin/agents", adminHandlers.CreateAgent())
			r.Get("/admin/agents", adminHandlers.ListAgents())
			r.Post("/admin/sub-accounts", adminHandlers.CreateSubAccount())
			r.Post("/admin/sub-accounts/status", adminHandlers.SetSubAccountStatus())
			r.Post("/admin/credits/adjust", adminHandlers.AdjustCredits())
			r.Post("/admin/credits/add", adminHandlers.AddCredits())
			r.Post("/admin/matches/expire", adminHandlers.ExpireMatches())
			r.Get("/admin/matches/health", adminHandlers.MatchHealth())
			r.Get("/admin/debug/vars", expvar.Handler().ServeHTTP)
		})
	})

	return r
}
