package models

import "time"

// TicketLine is a snapshot of one purchased cart line, captured at purchase
// time. It stays valid even if the product is later renamed or repriced.
type TicketLine struct {
	ProductID string  `json:"productid" bson:"productid"`
	Title     string  `json:"title" bson:"title"`
	Price     float64 `json:"price" bson:"price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
}

func (l TicketLine) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

// Ticket is the immutable receipt of a completed (possibly partial)
// purchase. Code is unique and human-shareable.
type Ticket struct {
	TicketID         string       `json:"ticketid" bson:"ticketid"`
	Code             string       `json:"code" bson:"code"`
	PurchaseDatetime time.Time    `json:"purchase_datetime" bson:"purchase_datetime"`
	Amount           float64      `json:"amount" bson:"amount"`
	Purchaser        string       `json:"purchaser" bson:"purchaser"`
	Products         []TicketLine `json:"products" bson:"products"`
	CreatedAt        time.Time    `json:"created_at" bson:"created_at"`
}
