package models

import "time"

// User is an account record. CartID is a weak reference to the user's live
// cart; it may point at an already evicted document and is lazily repaired
// by the cart service.
type User struct {
	UserID        string    `json:"userid" bson:"userid"`
	FirstName     string    `json:"first_name" bson:"first_name"`
	LastName      string    `json:"last_name" bson:"last_name"`
	Email         string    `json:"email" bson:"email"`
	Age           int       `json:"age,omitempty" bson:"age,omitempty"`
	Password      string    `json:"-" bson:"password"`
	Role          []string  `json:"role" bson:"role"`
	CartID        string    `json:"cartid,omitempty" bson:"cartid,omitempty"`
	RefreshToken  string    `json:"-" bson:"refresh_token,omitempty"`
	RefreshExpiry time.Time `json:"-" bson:"refresh_expiry,omitempty"`
	LastLogin     time.Time `json:"last_login,omitempty" bson:"last_login,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Role {
		if r == role {
			return true
		}
	}
	return false
}
