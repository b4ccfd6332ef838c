package models

import "time"

// Product is a catalog entry. Stock is only ever reduced through the
// product store's conditional decrement, so it can never go below zero.
type Product struct {
	ProductID   string    `json:"productid" bson:"productid"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Code        string    `json:"code" bson:"code"`
	Price       float64   `json:"price" bson:"price"`
	Stock       int       `json:"stock" bson:"stock"`
	Category    string    `json:"category" bson:"category"`
	Status      bool      `json:"status" bson:"status"`
	Thumbnails  []string  `json:"thumbnails,omitempty" bson:"thumbnails,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}
