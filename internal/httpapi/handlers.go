package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ErenAtasun/MaskHeist/internal/hub"
	"github.com/ErenAtasun/MaskHeist/internal/store"
)

const codeAttempts = 5

// History serves the recorded rounds of a session.
type History interface {
	History(ctx context.Context, code string, limit int) ([]store.RoundRecord, error)
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateSession(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for range codeAttempts {
			code, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			_, err = h.Create(r.Context(), code)
			if errors.Is(err, hub.ErrCodeTaken) {
				log.Debug("collision on code, regenerating", zap.String("session", code))
				continue
			}
			if err != nil {
				log.Error("create session", zap.Error(err))
				http.Error(w, "failed to create session", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusCreated, struct {
				Code string `json:"code"`
			}{Code: code})
			return
		}
		http.Error(w, "no free session code", http.StatusServiceUnavailable)
	}
}

func ListSessions(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codes, err := h.List(r.Context())
		if err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Sessions []string `json:"sessions"`
		}{Sessions: codes})
	}
}

func GetSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.Get(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		view, err := s.State(r.Context())
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func DeleteSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Remove(r.Context(), chi.URLParam(r, "code")); err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SessionHistory(hist History, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 100 {
				http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
				return
			}
			limit = n
		}
		code := chi.URLParam(r, "code")
		records, err := hist.History(r.Context(), code, limit)
		if errors.Is(err, store.ErrNoDatabase) {
			http.Error(w, "round history is disabled", http.StatusNotImplemented)
			return
		}
		if err != nil {
			log.Error("round history", zap.String("session", code), zap.Error(err))
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []store.RoundRecord{}
		}
		writeJSON(w, http.StatusOK, struct {
			Rounds []store.RoundRecord `json:"rounds"`
		}{Rounds: records})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
