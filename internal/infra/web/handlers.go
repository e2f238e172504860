package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
)

func (s *Server) loginHandler() http.HandlerFunc {
	type request struct {
		Secret string `json:"secret"`
	}
	type response struct {
		Token string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if s.secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.secret)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token, err := s.auth.Mint()
		if err != nil {
			http.Error(w, "Failed to mint token", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, response{Token: token})
	}
}

func (s *Server) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.stats.Totals(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("stats query failed")
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

type tarifResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	TotalLimit  int             `json:"total_limit"`
	DailyLimit  int             `json:"daily_limit"`
	MaxContext  int             `json:"max_context"`
	DurationSec int64           `json:"duration_seconds"`
	Type        model.TarifType `json:"type"`
	Prices      []priceResponse `json:"prices"`
}

type priceResponse struct {
	Currency model.Currency `json:"currency"`
	Value    int            `json:"value"`
}

func (s *Server) tarifsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tarifs, err := s.tarifs.ListAll(ctx)
		if err != nil {
			http.Error(w, "Failed to list tarifs", http.StatusInternalServerError)
			return
		}

		out := make([]tarifResponse, 0, len(tarifs))
		for _, t := range tarifs {
			resp := tarifResponse{
				ID:          t.ID,
				Name:        t.Name,
				Title:       t.Title,
				Description: t.Description,
				TotalLimit:  t.TotalLimit,
				DailyLimit:  t.DailyLimit,
				MaxContext:  t.MaxContext,
				DurationSec: int64(t.Duration.Seconds()),
				Type:        t.Type,
			}
			prices, err := s.tarifs.ListPrices(ctx, t.ID)
			if err != nil {
				http.Error(w, "Failed to list prices", http.StatusInternalServerError)
				return
			}
			for _, p := range prices {
				resp.Prices = append(resp.Prices, priceResponse{Currency: p.Currency, Value: p.Value})
			}
			out = append(out, resp)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) codesCreateHandler() http.HandlerFunc {
	type request struct {
		Value      string `json:"value"`
		UsageLimit int    `json:"usage_limit"`
		TarifID    int64  `json:"tarif_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Value == "" || req.UsageLimit <= 0 || req.TarifID <= 0 {
			http.Error(w, domain.ErrInvalidArgument.Error(), http.StatusBadRequest)
			return
		}

		code, err := s.codes.Create(r.Context(), &model.PromoCode{
			Value:      req.Value,
			UsageLimit: req.UsageLimit,
			TarifID:    req.TarifID,
		})
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, "Failed to create code", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, code)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
