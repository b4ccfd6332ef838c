package tickets

import (
	"testing"

	"tienda/models"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(0, "buyer@example.com"))
	assert.NoError(t, Validate(129.99, "buyer@example.com"))

	assert.ErrorIs(t, Validate(-1, "buyer@example.com"), ErrInvalidAmount)
	assert.ErrorIs(t, Validate(10, ""), ErrInvalidPurchaser)
	assert.ErrorIs(t, Validate(10, "   "), ErrInvalidPurchaser)
}

func TestTicketLineSubtotal(t *testing.T) {
	line := models.TicketLine{ProductID: "p1", Title: "Keyboard", Price: 49.5, Quantity: 3}
	assert.InDelta(t, 148.5, line.Subtotal(), 1e-9)
}
