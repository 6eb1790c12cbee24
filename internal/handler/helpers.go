package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/basket-service/internal/account"
	"github.com/vasiliy-maslov/basket-service/internal/basket"
	"github.com/vasiliy-maslov/basket-service/internal/order"
)

// respondWithError sends a JSON error body.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, basket.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, account.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage hides operational failures behind a generic message; the
// original cause stays in the logs.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, basket.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, order.ErrInsufficientFunds):
		return "insufficient funds"
	case errors.Is(err, account.ErrAccountNotFound):
		return "account not found"
	default:
		return "internal server error"
	}
}
