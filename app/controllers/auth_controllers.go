package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/shashiranjanraj/qcache/app/services"
	"github.com/shashiranjanraj/qcache/pkg/middleware"
)

type AuthController struct {
	service *services.AuthService
}

func NewAuthController() *AuthController {
	return &AuthController{
		service: services.NewAuthService(),
	}
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string
		Password string
	}

	json.NewDecoder(r.Body).Decode(&body)

	token, refresh, err := c.service.Login(body.Email, body.Password)
	if err != nil {
		http.Error(w, "Invalid user", 401)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"token":   token,
		"refresh": refresh,
	})
}

func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string
		Email    string
		Password string
	}

	json.NewDecoder(r.Body).Decode(&body)

	user, err := c.service.Register(body.Name, body.Email, body.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

// Profile returns the authenticated caller's identity, as decoded from the
// bearer token by middleware.AuthMiddleware.
func (c *AuthController) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	role, _ := middleware.RoleFromCtx(r)

	json.NewEncoder(w).Encode(map[string]any{
		"user_id": userID,
		"role":    role,
	})
}

// UpdateProfile updates the authenticated caller's name.
func (c *AuthController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var body struct {
		Name string
	}
	json.NewDecoder(r.Body).Decode(&body)

	user, err := c.service.UpdateName(userID, body.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"id":   user.ID,
		"name": user.Name,
	})
}
