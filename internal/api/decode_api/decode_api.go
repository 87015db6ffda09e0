package decode_api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/services/decodeproxy"
)

type Decoder interface {
	Decode(ctx context.Context, vin string) (models.VehicleRecord, error)
}

type DecodeAPI struct {
	svc    Decoder
	tokens []string
}

// New: пустой список токенов закрывает эндпоинт целиком.
func New(svc Decoder, tokens []string) *DecodeAPI {
	clean := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return &DecodeAPI{svc: svc, tokens: clean}
}

func (a *DecodeAPI) Register(r chi.Router) {
	r.With(a.requireToken).Post("/decode-vin", a.DecodeVIN)
}

type decodeRequest struct {
	VIN string `json:"vin"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *DecodeAPI) DecodeVIN(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	rec, err := a.svc.Decode(r.Context(), strings.TrimSpace(req.VIN))
	if errors.Is(err, decodeproxy.ErrInvalidVIN) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: models.ErrInvalidVINFormat})
		return
	}
	if err != nil {
		slog.Error("decode vin", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	// valid=false тоже 200, ошибка в теле записи
	writeJSON(w, http.StatusOK, rec)
}

func (a *DecodeAPI) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(r.Header.Get("Authorization"))
		if !ok || !a.known(token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="vinbox"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *DecodeAPI) known(token string) bool {
	for _, t := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	t := strings.TrimSpace(h[len(prefix):])
	return t, t != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
