package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/duel-room-server/internal/roomhost"
	"github.com/DoyleJ11/duel-room-server/internal/ws"
)

type Deps struct {
	Rooms    RoomLister
	Hosting  *roomhost.Server // nil disables /ws
	Origins  []string
	Engines  EngineUpdater   // nil disables the core webhook
	Banlists BanlistReloader // nil disables the banlist webhook
	Replays  ReplayLoader    // nil disables replay downloads

	WebhookToken string
	ListingTTL   time.Duration
	Log          *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthz", Healthz)
	r.Method(http.MethodGet, "/api/rooms", &listing{rooms: d.Rooms, ttl: d.ListingTTL, now: time.Now})
	if d.Replays != nil {
		r.Get("/api/replays/{id}", GetReplay(d.Replays))
	}
	if d.Hosting != nil {
		r.Get("/ws", ws.Handler(d.Hosting, d.Origins))
	}

	// Webhooks
	if d.Engines != nil {
		r.Post("/webhooks/core", requireToken(d.WebhookToken, CoreWebhook(d.Engines, d.Log)))
	}
	if d.Banlists != nil {
		r.Post("/webhooks/banlists", requireToken(d.WebhookToken, BanlistWebhook(d.Banlists, d.Log)))
	}
	return r
}
