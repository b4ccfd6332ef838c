package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tienda/models"
	"tienda/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateCode   = errors.New("product code already in use")

	// ErrInsufficientStock means the conditional decrement matched nothing:
	// not enough stock, product inactive, or product gone.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Store gives access to the product catalog. All stock mutation goes
// through DecrementStock / IncrementStock.
type Store struct {
	col *mongo.Collection
}

func NewStore(col *mongo.Collection) *Store {
	return &Store{col: col}
}

func (s *Store) GetByID(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	err := s.col.FindOne(ctx, bson.M{"productid": productID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

func (s *Store) GetByCode(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	err := s.col.FindOne(ctx, bson.M{"code": strings.ToUpper(strings.TrimSpace(code))}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// ListFilter narrows List results. A nil Status means "any".
type ListFilter struct {
	Category string
	Status   *bool
	Limit    int64
	Skip     int64
	SortAsc  bool
	SortDesc bool
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}

	opts := options.Find().SetSkip(filter.Skip)
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.SortAsc {
		opts.SetSort(bson.D{{Key: "price", Value: 1}})
	} else if filter.SortDesc {
		opts.SetSort(bson.D{{Key: "price", Value: -1}})
	}

	cursor, err := s.col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.Product
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	if items == nil {
		items = []models.Product{}
	}
	return items, nil
}

func (s *Store) Create(ctx context.Context, product *models.Product) error {
	now := time.Now()
	if product.ProductID == "" {
		product.ProductID = utils.GetUUID()
	}
	product.Code = strings.ToUpper(strings.TrimSpace(product.Code))
	product.CreatedAt = now
	product.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, product); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update applies the given field changes and returns the updated product.
func (s *Store) Update(ctx context.Context, productID string, changes bson.M) (*models.Product, error) {
	changes["updated_at"] = time.Now()

	res := s.col.FindOneAndUpdate(ctx,
		bson.M{"productid": productID},
		bson.M{"$set": changes},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.Product
	if err := res.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &updated, nil
}

func (s *Store) Delete(ctx context.Context, productID string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"productid": productID})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

// AddThumbnail appends a stored image name to the product.
func (s *Store) AddThumbnail(ctx context.Context, productID, filename string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"productid": productID},
		bson.M{
			"$push": bson.M{"thumbnails": filename},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add thumbnail: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementStock atomically takes quantity units off the product's stock,
// but only while the product is active and has at least that much left.
// The filter and $inc run as a single conditional update, so concurrent
// checkouts can never drive stock below zero. On no match it returns
// ErrInsufficientStock and the document is untouched.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) (*models.Product, error) {
	res := s.col.FindOneAndUpdate(ctx,
		bson.M{
			"productid": productID,
			"stock":     bson.M{"$gte": quantity},
			"status":    true,
		},
		bson.M{"$inc": bson.M{"stock": -quantity}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.Product
	if err := res.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInsufficientStock
		}
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return &updated, nil
}

// IncrementStock gives units back, used to compensate a checkout whose
// receipt could not be persisted.
func (s *Store) IncrementStock(ctx context.Context, productID string, quantity int) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"productid": productID},
		bson.M{"$inc": bson.M{"stock": quantity}},
	)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}
