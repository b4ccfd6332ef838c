package products

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tienda/models"
	"tienda/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
)

// Handlers serves the catalog endpoints. Mutating endpoints are wired
// behind the admin role in routes.
type Handlers struct {
	store     *Store
	uploadDir string
}

func NewHandlers(store *Store, uploadDir string) *Handlers {
	return &Handlers{store: store, uploadDir: uploadDir}
}

// List returns catalog entries, with optional ?category=, ?status=,
// ?limit=, ?page= and ?sort=asc|desc filters. ?code= looks up the single
// product with that code instead.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if code := r.URL.Query().Get("code"); code != "" {
		product, err := h.store.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				utils.RespondWithError(w, http.StatusNotFound, "Product not found")
				return
			}
			log.Println("List product by code error:", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve product")
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": []*models.Product{product}})
		return
	}

	filter := ListFilter{Category: r.URL.Query().Get("category")}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := raw == "true"
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.ParseInt(raw, 10, 64); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if filter.Limit == 0 {
		filter.Limit = 10
	}
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err := strconv.ParseInt(raw, 10, 64); err == nil && page > 1 {
			filter.Skip = (page - 1) * filter.Limit
		}
	}
	switch r.URL.Query().Get("sort") {
	case "asc":
		filter.SortAsc = true
	case "desc":
		filter.SortDesc = true
	}

	items, err := h.store.List(ctx, filter)
	if err != nil {
		log.Println("List products error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve products")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": items})
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	product, err := h.store.GetByID(ctx, ps.ByName("pid"))
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Println("Get product error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve product")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": product})
}

type productInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Code        string  `json:"code"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	Status      *bool   `json:"status"`
}

// Create inserts a catalog entry. Admin only.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var input productInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Code) == "" ||
		strings.TrimSpace(input.Category) == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Title, code and category are required")
		return
	}
	if input.Price < 0 || input.Stock < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Price and stock must be non-negative")
		return
	}

	status := true
	if input.Status != nil {
		status = *input.Status
	}

	product := &models.Product{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Code:        input.Code,
		Price:       input.Price,
		Stock:       input.Stock,
		Category:    input.Category,
		Status:      status,
	}

	if err := h.store.Create(ctx, product); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			utils.RespondWithError(w, http.StatusConflict, "Product code already in use")
			return
		}
		log.Println("Create product error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not create product")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"status": "success", "payload": product})
}

// Update applies the fields present in the body. Admin only. Stock edits go
// through here as catalog management; checkout never does.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var input struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Code        *string  `json:"code"`
		Price       *float64 `json:"price"`
		Stock       *int     `json:"stock"`
		Category    *string  `json:"category"`
		Status      *bool    `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	changes := bson.M{}
	if input.Title != nil {
		changes["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		changes["description"] = *input.Description
	}
	if input.Code != nil {
		changes["code"] = strings.ToUpper(strings.TrimSpace(*input.Code))
	}
	if input.Price != nil {
		if *input.Price < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Price must be non-negative")
			return
		}
		changes["price"] = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Stock must be non-negative")
			return
		}
		changes["stock"] = *input.Stock
	}
	if input.Category != nil {
		changes["category"] = *input.Category
	}
	if input.Status != nil {
		changes["status"] = *input.Status
	}
	if len(changes) == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	product, err := h.store.Update(ctx, ps.ByName("pid"), changes)
	if err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, ErrDuplicateCode):
			utils.RespondWithError(w, http.StatusConflict, "Product code already in use")
		default:
			log.Println("Update product error:", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Could not update product")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": product})
}

// Delete removes a catalog entry. Admin only.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.store.Delete(ctx, ps.ByName("pid")); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Println("Delete product error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not delete product")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "message": "Product deleted"})
}
