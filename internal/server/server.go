// Package server exposes the stored snapshot as a read-only JSON API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pable/go-cr-meta/internal/battle"
	"github.com/pable/go-cr-meta/internal/model"
	"github.com/pable/go-cr-meta/internal/storage"
)

// Store is the read side of the snapshot store.
type Store interface {
	MetaDeckTypes(ctx context.Context) ([]storage.TypeStat, error)
	TopDecks(ctx context.Context, q storage.DeckQuery) ([]storage.DeckStat, error)
	TypeCards(ctx context.Context, dt model.DeckType, limit int) ([]storage.CardStat, error)
	GetDeckByPrefix(ctx context.Context, prefix string) (*storage.DeckStat, error)
	DeckCards(ctx context.Context, hash string) ([]storage.DeckCard, error)
	ListPlayers(ctx context.Context) ([]model.Player, error)
	GetPlayer(ctx context.Context, tag string) (*model.Player, error)
	PlayerDecks(ctx context.Context, tag string) ([]storage.DeckStat, error)
	PlayerTypeCards(ctx context.Context, tag string) ([]storage.CardStat, error)
}

type handler struct {
	store Store
	log   *zap.Logger
}

// New returns the API router. log may be nil.
func New(store Store, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{store: store, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/meta/types", h.metaTypes)
		r.Get("/meta/types/{type}/decks", h.typeDecks)
		r.Get("/meta/types/{type}/cards", h.typeCards)
		r.Get("/decks/{hash}", h.deck)
		r.Get("/players", h.players)
		r.Get("/players/{tag}/decks", h.playerDecks)
	})
	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *handler) metaTypes(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.MetaDeckTypes(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(stats))
}

func (h *handler) typeDecks(w http.ResponseWriter, r *http.Request) {
	dt, ok := deckTypeParam(r)
	if !ok {
		writeJSONError(w, "unknown deck type", http.StatusNotFound)
		return
	}
	decks, err := h.store.TopDecks(r.Context(), storage.DeckQuery{
		Type:    dt,
		MinUses: intQuery(r, "min_uses", 0),
		Limit:   intQuery(r, "limit", 50),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(decks))
}

func (h *handler) typeCards(w http.ResponseWriter, r *http.Request) {
	dt, ok := deckTypeParam(r)
	if !ok {
		writeJSONError(w, "unknown deck type", http.StatusNotFound)
		return
	}
	cards, err := h.store.TypeCards(r.Context(), dt, intQuery(r, "limit", 0))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cards))
}

func (h *handler) deck(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetDeckByPrefix(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if d == nil {
		writeJSONError(w, "deck not found", http.StatusNotFound)
		return
	}
	cards, err := h.store.DeckCards(r.Context(), d.Hash)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		storage.DeckStat
		Cards []storage.DeckCard `json:"cards"`
	}{*d, nonNil(cards)})
}

func (h *handler) players(w http.ResponseWriter, r *http.Request) {
	players, err := h.store.ListPlayers(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(players))
}

func (h *handler) playerDecks(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "tag"))
	if err != nil {
		writeJSONError(w, "bad player tag", http.StatusBadRequest)
		return
	}
	tag := battle.NormalizeTag(raw)

	p, err := h.store.GetPlayer(r.Context(), tag)
	if err != nil {
		h.fail(w, err)
		return
	}
	if p == nil {
		writeJSONError(w, "player not found", http.StatusNotFound)
		return
	}
	decks, err := h.store.PlayerDecks(r.Context(), tag)
	if err != nil {
		h.fail(w, err)
		return
	}
	cards, err := h.store.PlayerTypeCards(r.Context(), tag)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Player model.Player       `json:"player"`
		Decks  []storage.DeckStat `json:"decks"`
		Cards  []storage.CardStat `json:"cards"`
	}{*p, nonNil(decks), nonNil(cards)})
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	h.log.Error("store query failed", zap.Error(err))
	writeJSONError(w, "internal error", http.StatusInternalServerError)
}

func deckTypeParam(r *http.Request) (model.DeckType, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "type"))
	if err != nil {
		return "", false
	}
	return model.ParseDeckType(raw)
}

func intQuery(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
