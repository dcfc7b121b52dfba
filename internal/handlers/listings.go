package handlers

import (
	"net/http"

	"marketplace-oauth/internal/common/logging"

	"github.com/gorilla/mux"
)

// userContext returns r with the user_id query parameter attached to its
// context for logging
func userContext(r *http.Request) (*http.Request, string) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		return r, ""
	}
	return r.WithContext(logging.ContextWithUserID(r.Context(), userID)), userID
}

// SellerItems lists the details of every item the seller has
func (h *Handlers) SellerItems(w http.ResponseWriter, r *http.Request) {
	r, userID := userContext(r)

	items, err := h.listings.SellerItems(r.Context(), userID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSONResponse(w, items)
}

// ItemPrice returns the sale price of one item
func (h *Handlers) ItemPrice(w http.ResponseWriter, r *http.Request) {
	r, userID := userContext(r)

	price, err := h.listings.ItemPrice(r.Context(), userID, mux.Vars(r)["itemId"])
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSONResponse(w, price)
}

// Promotions passes the seller's promotions through
func (h *Handlers) Promotions(w http.ResponseWriter, r *http.Request) {
	r, userID := userContext(r)

	raw, err := h.listings.Promotions(r.Context(), userID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendRawJSON(w, raw)
}

// PromotionItems passes the items of one promotion through
func (h *Handlers) PromotionItems(w http.ResponseWriter, r *http.Request) {
	r, userID := userContext(r)
	query := r.URL.Query()

	raw, err := h.listings.PromotionItems(r.Context(), userID,
		mux.Vars(r)["id"],
		query.Get("promotion_type"),
		query.Get("status"),
	)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendRawJSON(w, raw)
}
