package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tienda/middleware"
	"tienda/models"
	"tienda/users"
	"tienda/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
	minPasswordLen  = 8
)

// Handlers serves registration and session endpoints.
type Handlers struct {
	users *users.Store
	auth  *middleware.Auth
}

func NewHandlers(usersStore *users.Store, auth *middleware.Auth) *Handlers {
	return &Handlers{users: usersStore, auth: auth}
}

// randomToken returns a 64-char hex string from a CSPRNG.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// hashToken is how refresh and reset tokens are stored: only the digest
// ever touches the database.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type registerInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Age       int    `json:"age"`
	Password  string `json:"password"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var input registerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if input.FirstName == "" || !utils.ValidEmail(input.Email) {
		utils.RespondWithError(w, http.StatusBadRequest, "Name and a valid email are required")
		return
	}
	if len(input.Password) < minPasswordLen {
		utils.RespondWithError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Println("Register bcrypt error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not register user")
		return
	}

	user := &models.User{
		UserID:    utils.GetUUID(),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     utils.NormalizeEmail(input.Email),
		Age:       input.Age,
		Password:  string(hashed),
		Role:      []string{"user"},
	}

	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			utils.RespondWithError(w, http.StatusConflict, "Email already registered")
			return
		}
		log.Println("Register error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not register user")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"status": "success", "payload": user})
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// issueSession signs an access token and rotates the refresh token.
func (h *Handlers) issueSession(ctx context.Context, user *models.User) (access, refresh string, err error) {
	now := time.Now()
	claims := &middleware.Claims{
		Email:  user.Email,
		UserID: user.UserID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	access, err = h.auth.Sign(claims)
	if err != nil {
		return "", "", err
	}

	refresh, err = randomToken()
	if err != nil {
		return "", "", err
	}
	if err = h.users.SetRefreshToken(ctx, user.UserID, hashToken(refresh), now.Add(refreshTokenTTL)); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var input loginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.GetByEmail(ctx, input.Email)
	if err != nil {
		// Same response for unknown email and bad password.
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	access, refresh, err := h.issueSession(ctx, user)
	if err != nil {
		log.Println("Login session error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not log in")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"status": "success",
		"payload": utils.M{
			"token":         access,
			"refresh_token": refresh,
			"user":          user,
		},
	})
}

type refreshInput struct {
	UserID       string `json:"userid"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh trades a live refresh token for a new access token. Tokens are
// single use; every refresh rotates them.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var input refreshInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.GetByID(ctx, input.UserID)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if user.RefreshToken == "" ||
		user.RefreshToken != hashToken(input.RefreshToken) ||
		time.Now().After(user.RefreshExpiry) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	access, refresh, err := h.issueSession(ctx, user)
	if err != nil {
		log.Println("Refresh session error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not refresh session")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"status": "success",
		"payload": utils.M{
			"token":         access,
			"refresh_token": refresh,
		},
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.users.ClearRefreshToken(ctx, claims.UserID); err != nil {
		log.Println("Logout error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not log out")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "message": "Logged out"})
}

// Me returns the authenticated user's own record.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "payload": user})
}
