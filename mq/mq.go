package mq

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"tienda/models"
	"tienda/rdx"
)

// PurchaseEvent is the wire form published after every completed checkout.
// Consumers (mail, search indexing) subscribe to the channel.
type PurchaseEvent struct {
	TicketID    string    `json:"ticketid"`
	Code        string    `json:"code"`
	Purchaser   string    `json:"purchaser"`
	Amount      float64   `json:"amount"`
	Products    []string  `json:"products"`
	Unprocessed []string  `json:"unprocessed,omitempty"`
	At          time.Time `json:"at"`
}

// Emitter publishes purchase events to a Redis channel. Publishing is
// fire-and-forget; a broker hiccup never fails the checkout.
type Emitter struct {
	cache   *rdx.Client
	channel string
}

func NewEmitter(cache *rdx.Client, channel string) *Emitter {
	return &Emitter{cache: cache, channel: channel}
}

func (e *Emitter) EmitPurchase(ctx context.Context, ticket *models.Ticket, unprocessed []string) {
	productIDs := make([]string, 0, len(ticket.Products))
	for _, line := range ticket.Products {
		productIDs = append(productIDs, line.ProductID)
	}

	event := PurchaseEvent{
		TicketID:    ticket.TicketID,
		Code:        ticket.Code,
		Purchaser:   ticket.Purchaser,
		Amount:      ticket.Amount,
		Products:    productIDs,
		Unprocessed: unprocessed,
		At:          ticket.PurchaseDatetime,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("EmitPurchase marshal error:", err)
		return
	}
	if err := e.cache.Publish(ctx, e.channel, payload); err != nil {
		log.Println("EmitPurchase publish error:", err)
	}
}
