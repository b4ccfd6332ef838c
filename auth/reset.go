package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"tienda/mailer"
	"tienda/rdx"
	"tienda/users"
	"tienda/utils"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

const resetKeyPrefix = "pwdreset:"

// ResetHandlers drives the forgot-password flow: a single-use token is
// mailed out, its digest parked in Redis with a TTL, and redeemed once.
type ResetHandlers struct {
	users   *users.Store
	cache   *rdx.Client
	mail    mailer.Mailer
	ttl     time.Duration
	urlBase string
}

func NewResetHandlers(usersStore *users.Store, cache *rdx.Client, mail mailer.Mailer, ttl time.Duration, urlBase string) *ResetHandlers {
	return &ResetHandlers{users: usersStore, cache: cache, mail: mail, ttl: ttl, urlBase: urlBase}
}

type requestResetInput struct {
	Email string `json:"email"`
}

// RequestReset always answers the same way, so the endpoint cannot be used
// to probe which emails are registered.
func (h *ResetHandlers) RequestReset(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var input requestResetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	genericOK := func() {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{
			"status":  "success",
			"message": "If that email is registered, a reset link has been sent",
		})
	}

	user, err := h.users.GetByEmail(ctx, input.Email)
	if err != nil {
		genericOK()
		return
	}

	token, err := randomToken()
	if err != nil {
		log.Println("RequestReset token error:", err)
		genericOK()
		return
	}
	if err := h.cache.SetWithExpiry(ctx, resetKeyPrefix+hashToken(token), user.UserID, h.ttl); err != nil {
		log.Println("RequestReset cache error:", err)
		genericOK()
		return
	}

	link := fmt.Sprintf("%s?token=%s", h.urlBase, token)
	body := fmt.Sprintf("A password reset was requested for your account. The link below expires in %d minutes.\n\n%s", int(h.ttl.Minutes()), link)
	html := fmt.Sprintf(`<p>A password reset was requested for your account. The link below expires in %d minutes.</p><p><a href="%s">Reset password</a></p>`, int(h.ttl.Minutes()), link)
	if err := h.mail.Send(user.Email, "Password reset", body, html); err != nil {
		log.Println("RequestReset mail error:", err)
	}

	genericOK()
}

type resetPasswordInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *ResetHandlers) ResetPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var input resetPasswordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(input.Password) < minPasswordLen {
		utils.RespondWithError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	key := resetKeyPrefix + hashToken(input.Token)
	userID, err := h.cache.Get(ctx, key)
	if err != nil {
		if rdx.IsNil(err) {
			utils.RespondWithError(w, http.StatusBadRequest, "Reset link is invalid or has expired")
			return
		}
		log.Println("ResetPassword cache error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not reset password")
		return
	}

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Reset link is invalid or has expired")
		return
	}

	// Reusing the current password is rejected.
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "New password must differ from the current one")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Println("ResetPassword bcrypt error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not reset password")
		return
	}
	if err := h.users.UpdatePassword(ctx, user.UserID, string(hashed)); err != nil {
		log.Println("ResetPassword update error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not reset password")
		return
	}

	// Burn the token and kill open sessions.
	if err := h.cache.Del(ctx, key); err != nil {
		log.Println("ResetPassword token burn error:", err)
	}
	if err := h.users.ClearRefreshToken(ctx, user.UserID); err != nil {
		log.Println("ResetPassword session revoke error:", err)
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "message": "Password updated"})
}
