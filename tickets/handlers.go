package tickets

import (
	"context"
	"errors"
	"log"
	"net/http"
	"slices"
	"time"

	"tienda/middleware"
	"tienda/utils"

	"github.com/julienschmidt/httprouter"
)

// Handlers serves receipt lookups. Buyers see their own receipts; admins
// see everything.
type Handlers struct {
	store *Store
	// qrSecret signs the QR payload embedded in printable receipts.
	qrSecret []byte
}

func NewHandlers(store *Store, qrSecret []byte) *Handlers {
	return &Handlers{store: store, qrSecret: qrSecret}
}

// GetByCode returns one receipt. A buyer may only fetch a receipt issued
// to their own email.
func (h *Handlers) GetByCode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	ticket, err := h.store.GetByCode(ctx, ps.ByName("code"))
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Ticket not found")
			return
		}
		log.Println("GetByCode error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve ticket")
		return
	}

	if !slices.Contains(claims.Role, "admin") && ticket.Purchaser != utils.NormalizeEmail(claims.Email) {
		utils.RespondWithError(w, http.StatusForbidden, "Not your ticket")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": ticket})
}

// ListMine returns the caller's purchase history, most recent first.
func (h *Handlers) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	tickets, err := h.store.ListByPurchaser(ctx, claims.Email)
	if err != nil {
		log.Println("ListMine error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve tickets")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": tickets})
}

// AdminAll returns every receipt. Admin only.
func (h *Handlers) AdminAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	tickets, err := h.store.GetAll(ctx)
	if err != nil {
		log.Println("AdminAll tickets error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve tickets")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": tickets})
}
