package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tienda/models"
	"tienda/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Store gives access to account records.
type Store struct {
	col *mongo.Collection
}

func NewStore(col *mongo.Collection) *Store {
	return &Store{col: col}
}

func (s *Store) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"userid": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"email": utils.NormalizeEmail(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *Store) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.Email = utils.NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SetCartRef binds (or rebinds) the user's live cart reference.
func (s *Store) SetCartRef(ctx context.Context, userID, cartID string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$set": bson.M{"cartid": cartID, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to bind cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Store) SetRefreshToken(ctx context.Context, userID, tokenHash string, expiry time.Time) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$set": bson.M{
			"refresh_token":  tokenHash,
			"refresh_expiry": expiry,
			"last_login":     time.Now(),
		}},
	)
	return err
}

func (s *Store) ClearRefreshToken(ctx context.Context, userID string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$unset": bson.M{"refresh_token": "", "refresh_expiry": ""}},
	)
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$set": bson.M{"password": passwordHash, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
