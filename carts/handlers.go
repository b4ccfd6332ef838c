package carts

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tienda/middleware"
	"tienda/models"
	"tienda/products"
	"tienda/users"
	"tienda/utils"

	"github.com/julienschmidt/httprouter"
)

// Handlers serves the cart endpoints. All of them run for the
// authenticated user's own cart; AdminAll is wired behind the admin role.
type Handlers struct {
	svc   *Service
	store *Store
	users *users.Store
}

func NewHandlers(svc *Service, store *Store, usersStore *users.Store) *Handlers {
	return &Handlers{svc: svc, store: store, users: usersStore}
}

// currentUser loads the full user record for the request's claims. The
// cart reference on the document is what ownership checks run against.
func (h *Handlers) currentUser(ctx context.Context, r *http.Request) (*models.User, error) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		return nil, ErrUnauthenticated
	}
	return h.users.GetByID(ctx, claims.UserID)
}

func respondCartErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, ErrForbiddenRole), errors.Is(err, ErrNotOwner):
		utils.RespondWithError(w, http.StatusForbidden, "You do not have access to this cart")
	case errors.Is(err, ErrCartNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Cart not found")
	case errors.Is(err, ErrItemNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Product not in cart")
	case errors.Is(err, products.ErrProductNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, ErrProductUnavailable):
		utils.RespondWithError(w, http.StatusConflict, "Product not available")
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidID), errors.Is(err, ErrEmptyCart):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrUserNotFound):
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
	default:
		log.Println("Cart handler error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

// Mine resolves (creating if needed) the caller's cart.
func (h *Handlers) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	cart, err := h.svc.EnsureUserCart(ctx, user)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	resolved, err := h.svc.GetResolved(ctx, user, cart.CartID)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": resolved})
}

// GetByID returns the caller's cart with product details joined in.
func (h *Handlers) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	resolved, err := h.svc.GetResolved(ctx, user, ps.ByName("cid"))
	if err != nil {
		respondCartErr(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": resolved})
}

type quantityInput struct {
	Quantity int `json:"quantity"`
}

// AddProduct adds units of a product to the cart. A missing body or
// quantity means one unit.
func (h *Handlers) AddProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	input := quantityInput{Quantity: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	resolved, err := h.svc.AddProduct(ctx, user, ps.ByName("cid"), ps.ByName("pid"), input.Quantity)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": resolved})
}

// UpdateQuantity sets an existing line to an exact quantity.
func (h *Handlers) UpdateQuantity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	var input quantityInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resolved, err := h.svc.UpdateQuantity(ctx, user, ps.ByName("cid"), ps.ByName("pid"), input.Quantity)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": resolved})
}

// RemoveProduct drops a line from the cart.
func (h *Handlers) RemoveProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	resolved, err := h.svc.RemoveProduct(ctx, user, ps.ByName("cid"), ps.ByName("pid"))
	if err != nil {
		respondCartErr(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": resolved})
}

// Clear empties the cart without deleting it.
func (h *Handlers) Clear(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	resolved, err := h.svc.Clear(ctx, user, ps.ByName("cid"))
	if err != nil {
		respondCartErr(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": resolved})
}

// Purchase runs the checkout for the cart. A total failure comes back as
// 400 with the per-product breakdown; partial success is still a 200.
func (h *Handlers) Purchase(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	user, err := h.currentUser(ctx, r)
	if err != nil {
		respondCartErr(w, err)
		return
	}

	result, err := h.svc.Purchase(ctx, user, ps.ByName("cid"))
	if err != nil {
		respondCartErr(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == "error" {
		status = http.StatusBadRequest
	}
	utils.RespondWithJSON(w, status, utils.M{"status": result.Status, "payload": result})
}

// AdminAll lists every cart with its owners. Admin only.
func (h *Handlers) AdminAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	carts, err := h.store.AllWithOwners(ctx)
	if err != nil {
		log.Println("AdminAll carts error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve carts")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": carts})
}
