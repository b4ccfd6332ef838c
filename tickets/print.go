package tickets

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"tienda/middleware"
	"tienda/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// qrPayload returns code|timestamp|signature so a scanner can verify the
// receipt offline.
func (h *Handlers) qrPayload(code string) string {
	timestamp := time.Now().Unix()
	data := fmt.Sprintf("%s|%d", code, timestamp)

	mac := hmac.New(sha256.New, h.qrSecret)
	mac.Write([]byte(data))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("%s|%s", data, sig)
}

// PrintReceipt renders a receipt as a downloadable PDF with an embedded
// verification QR code.
func (h *Handlers) PrintReceipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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
		log.Println("PrintReceipt lookup error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve ticket")
		return
	}

	if !slices.Contains(claims.Role, "admin") && ticket.Purchaser != utils.NormalizeEmail(claims.Email) {
		utils.RespondWithError(w, http.StatusForbidden, "Not your ticket")
		return
	}

	qrPNG, err := qrcode.Encode(h.qrPayload(ticket.Code), qrcode.Medium, 256)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Purchase Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Code: %s", ticket.Code))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Purchaser: %s", ticket.Purchaser))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Date: %s", ticket.PurchaseDatetime.Format("02 Jan 2006 15:04")))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Items")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	for _, line := range ticket.Products {
		pdf.Cell(0, 7, fmt.Sprintf("%s  x%d  @ %.2f  =  %.2f",
			line.Title, line.Quantity, line.Price, line.Subtotal()))
		pdf.Ln(7)
	}
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 10, fmt.Sprintf("Total: %.2f", ticket.Amount))

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 40, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=receipt-"+ticket.Code+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
