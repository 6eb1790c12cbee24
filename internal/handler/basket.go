package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/basket-service/internal/basket"
	"github.com/vasiliy-maslov/basket-service/internal/history"
	"github.com/vasiliy-maslov/basket-service/internal/order"
)

// ownerHeader carries the owner id resolved by the auth layer in front of
// this service. The engine itself never touches session state.
const ownerHeader = "X-Owner-ID"

// BasketHandler exposes the basket lifecycle over HTTP.
type BasketHandler struct {
	baskets basket.Service
	orders  order.Service
	history history.Reader
}

func NewBasketHandler(baskets basket.Service, orders order.Service, hist history.Reader) *BasketHandler {
	return &BasketHandler{baskets: baskets, orders: orders, history: hist}
}

type itemRequest struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// AddItem handles POST /basket/items.
func (h *BasketHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseOwnerID(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.baskets.AddItem(r.Context(), ownerID, req.SKU, req.Qty); err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("handler: failed to add item")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// DecreaseItem handles DELETE /basket/items.
func (h *BasketHandler) DecreaseItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseOwnerID(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.baskets.DecreaseItem(r.Context(), ownerID, req.SKU, req.Qty); err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("handler: failed to decrease item")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "decreased"})
}

// GetBasket handles GET /basket.
func (h *BasketHandler) GetBasket(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseOwnerID(w, r)
	if !ok {
		return
	}

	items, err := h.baskets.OpenItems(r.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("handler: failed to read basket")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// Checkout handles POST /basket/checkout.
func (h *BasketHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseOwnerID(w, r)
	if !ok {
		return
	}

	result, err := h.orders.Checkout(r.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("handler: checkout failed")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}
	if result == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "nothing to purchase"})
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// Clear handles POST /basket/clear.
func (h *BasketHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseOwnerID(w, r)
	if !ok {
		return
	}

	result, err := h.orders.Clear(r.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("handler: clear failed")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}
	if result == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "nothing to clear"})
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetBalance handles GET /account/balance.
func (h *BasketHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseOwnerID(w, r)
	if !ok {
		return
	}

	balance, err := h.orders.Balance(r.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("handler: failed to read balance")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"balance": balance})
}

// GetHistory handles GET /history.
func (h *BasketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseOwnerID(w, r)
	if !ok {
		return
	}

	hist, err := h.history.History(r.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("handler: failed to read history")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, hist)
}

func parseOwnerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(ownerHeader)
	if raw == "" {
		respondWithError(w, http.StatusUnauthorized, "owner id is required")
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "owner id must be a positive integer")
		return 0, false
	}

	return id, true
}
