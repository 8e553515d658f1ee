package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/duel-room-server/internal/replay"
	"github.com/DoyleJ11/duel-room-server/internal/room"
	"github.com/DoyleJ11/duel-room-server/pkg/types"
)

// RoomLister lists every open room.
type RoomLister interface {
	List(ctx context.Context) []room.Props
}

type EngineUpdater interface {
	OnUpdate(ctx context.Context) error
}

type BanlistReloader interface {
	Reload() (int, error)
}

type ReplayLoader interface {
	Load(ctx context.Context, id uint64) (replay.Record, error)
}

func toListing(props []room.Props) types.RoomList {
	out := types.RoomList{Rooms: make([]types.Room, 0, len(props))}
	for _, p := range props {
		started := "waiting"
		if p.Started {
			started = "start"
		}
		users := make([]types.User, 0, len(p.Duelists))
		for pos, name := range p.Duelists {
			users = append(users, types.User{Name: name, Pos: pos})
		}
		slices.SortFunc(users, func(a, b types.User) int { return int(a.Pos) - int(b.Pos) })

		h := p.Info
		out.Rooms = append(out.Rooms, types.Room{
			ID:             p.ID,
			Name:           p.Name,
			Notes:          p.Notes,
			NeedPass:       p.Passworded,
			Team1:          h.T0Count,
			Team2:          h.T1Count,
			BestOf:         h.BestOf,
			DuelFlag:       h.DuelFlags,
			ForbiddenTypes: h.Forb,
			ExtraRules:     h.ExtraRules,
			StartLP:        h.StartingLP,
			StartHand:      h.StartingDrawCount,
			DrawCount:      h.DrawCountPerTurn,
			TimeLimit:      h.TimeLimitInSeconds,
			Rule:           uint8(h.Allowed),
			NoCheck:        h.DontCheckDeck != 0,
			NoShuffle:      h.DontShuffleDeck != 0,
			BanlistHash:    h.BanlistHash,
			Started:        started,
			Users:          users,
		})
	}
	return out
}

// listing serves the room list, re-serializing it at most once per ttl.
type listing struct {
	rooms RoomLister
	ttl   time.Duration
	now   func() time.Time

	mu   sync.Mutex
	at   time.Time
	body []byte
}

func (l *listing) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	if l.body == nil || l.now().Sub(l.at) >= l.ttl {
		body, err := json.Marshal(toListing(l.rooms.List(r.Context())))
		if err != nil {
			l.mu.Unlock()
			http.Error(w, "failed to encode listing", http.StatusInternalServerError)
			return
		}
		l.body, l.at = body, l.now()
	}
	body := l.body
	l.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// requireToken rejects requests that do not carry token in the
// X-Webhook-Token header or the token query parameter. An empty token
// disables the check.
func requireToken(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			got := r.Header.Get("X-Webhook-Token")
			if got == "" {
				got = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func CoreWebhook(engines EngineUpdater, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engines.OnUpdate(r.Context()); err != nil {
			log.Error("engine update failed", zap.Error(err))
			http.Error(w, "engine update failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func BanlistWebhook(banlists BanlistReloader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := banlists.Reload()
		if err != nil {
			log.Error("banlist reload failed", zap.Error(err))
			http.Error(w, "banlist reload failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(struct {
			Loaded int `json:"loaded"`
		}{Loaded: n})
	}
}

func GetReplay(replays ReplayLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "bad replay id", http.StatusBadRequest)
			return
		}
		rec, err := replays.Load(r.Context(), id)
		if errors.Is(err, replay.ErrNotFound) {
			http.Error(w, "replay not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "failed to load replay", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.FormatUint(rec.ID, 10)+".yrpX")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rec.Data)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
