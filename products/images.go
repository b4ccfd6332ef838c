package products

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"tienda/utils"

	"github.com/disintegration/imaging"
	"github.com/julienschmidt/httprouter"
)

const maxImageSize = 5 << 20 // 5 MiB

// UploadImage stores a product image and a 300px thumbnail next to it,
// then records the thumbnail on the product. Admin only.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	productID := ps.ByName("pid")

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid multipart payload")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Image file is required")
		return
	}
	defer file.Close()

	if !utils.SupportedImageTypes[header.Header.Get("Content-Type")] {
		utils.RespondWithError(w, http.StatusBadRequest, "Unsupported image type")
		return
	}

	filename, err := utils.SaveFile(file, header, h.uploadDir)
	if err != nil {
		log.Println("UploadImage save error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not save image")
		return
	}

	thumbName, err := h.makeThumbnail(filename)
	if err != nil {
		log.Println("UploadImage thumbnail error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not process image")
		return
	}

	if err := h.store.AddThumbnail(ctx, productID, thumbName); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Println("UploadImage store error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not attach image")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"status":    "success",
		"thumbnail": thumbName,
	})
}

// makeThumbnail writes a 300px-wide copy alongside the original.
func (h *Handlers) makeThumbnail(filename string) (string, error) {
	src, err := imaging.Open(filepath.Join(h.uploadDir, filename))
	if err != nil {
		return "", err
	}

	thumb := imaging.Resize(src, 300, 0, imaging.Lanczos)
	ext := filepath.Ext(filename)
	thumbName := strings.TrimSuffix(filename, ext) + "_thumb" + ext

	if err := imaging.Save(thumb, filepath.Join(h.uploadDir, thumbName)); err != nil {
		return "", err
	}
	return thumbName, nil
}
