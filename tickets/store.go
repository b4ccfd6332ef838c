package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tienda/models"
	"tienda/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrInvalidAmount    = errors.New("amount must be non-negative")
	ErrInvalidPurchaser = errors.New("purchaser email is required")
)

// Store is the append-only receipt ledger. Tickets are created once and
// never updated or deleted.
type Store struct {
	col *mongo.Collection
}

func NewStore(col *mongo.Collection) *Store {
	return &Store{col: col}
}

// Validate rejects a ticket request before anything touches storage.
func Validate(amount float64, purchaser string) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if utils.NormalizeEmail(purchaser) == "" {
		return ErrInvalidPurchaser
	}
	return nil
}

// Create persists an immutable receipt with a fresh unique code and the
// current purchase timestamp. The unique index on code backs up the
// negligible-but-nonzero UUID collision chance.
func (s *Store) Create(ctx context.Context, purchaser string, amount float64, lines []models.TicketLine) (*models.Ticket, error) {
	if err := Validate(amount, purchaser); err != nil {
		return nil, err
	}

	now := time.Now()
	ticket := &models.Ticket{
		TicketID:         utils.GetUUID(),
		Code:             utils.GetUUID(),
		PurchaseDatetime: now,
		Amount:           amount,
		Purchaser:        utils.NormalizeEmail(purchaser),
		Products:         lines,
		CreatedAt:        now,
	}
	if ticket.Products == nil {
		ticket.Products = []models.TicketLine{}
	}

	if _, err := s.col.InsertOne(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to store ticket: %w", err)
	}
	return ticket, nil
}

func (s *Store) GetByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.col.FindOne(ctx, bson.M{"code": code}).Decode(&ticket)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

// ListByPurchaser returns a buyer's receipts, most recent first.
func (s *Store) ListByPurchaser(ctx context.Context, purchaser string) ([]models.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "purchase_datetime", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{"purchaser": utils.NormalizeEmail(purchaser)}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer cursor.Close(ctx)

	var tickets []models.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("failed to read tickets: %w", err)
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

// GetAll returns every receipt, most recent first. Admin use.
func (s *Store) GetAll(ctx context.Context) ([]models.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "purchase_datetime", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer cursor.Close(ctx)

	var tickets []models.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("failed to read tickets: %w", err)
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}
