package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fitlytics/fitlytics/internal/middleware"
	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"
	"github.com/fitlytics/fitlytics/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate go run go.uber.org/mock/mockgen -source=handler.go -destination=handler_mocks_test.go -package=users_test

type usersRepo interface {
	Add(ctx context.Context, user User) (*User, error)
	GetByID(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type authService interface {
	Login(ctx context.Context, userID int, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type profileService interface {
	UpdateProfile(ctx context.Context, userID int, profile Profile) error
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Handler struct {
	repo        usersRepo
	authService authService
	profiles    profileService
}

func NewHandler(repo usersRepo, authService authService, profiles profileService) *Handler {
	return &Handler{
		repo:        repo,
		authService: authService,
		profiles:    profiles,
	}
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.register")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("register user, unmarshal json params: %s", err)
		http.Error(w, "register failed", http.StatusBadRequest)
		return
	}

	if len(req.Username) < 3 {
		http.Error(w, "error, username too short", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		http.Error(w, "error, invalid email", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 6 {
		http.Error(w, "error, password too short", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(req.Password)
	if err != nil {
		log.Errorf("failed to hash password for %s: %s", req.Email, err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	addedUser, err := handler.repo.Add(ctx, User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			http.Error(w, "error, username or email taken", http.StatusConflict)
			return
		}
		log.Errorf("failed to add new user [%s]: %s", req.Email, err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	userJson, err := json.Marshal(addedUser)
	if err != nil {
		log.Errorf("failed to marshal new user: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("new user registered: %s", addedUser.Email)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, userJson, http.StatusCreated)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.login")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("login, unmarshal json params: %s", err)
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}

	user, err := handler.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "no can do", http.StatusUnauthorized)
			return
		}
		log.Errorf("login, failed to get user [%s]: %s", req.Email, err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	if !pkg.CheckPasswordHash(req.Password, user.PasswordHash) {
		log.Tracef("login, invalid password for %s", req.Email)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	token, err := handler.authService.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("login, failed to create session for %s: %s", req.Email, err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	loginRespJson, err := json.Marshal(LoginResponse{
		Token: token,
		User:  *user,
	})
	if err != nil {
		log.Errorf("failed to marshal login response: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("user logged in: %s", user.Email)
	pkg.WriteJSONResponseOK(w, string(loginRespJson))
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.logout")
	defer span.End()

	token := middleware.BearerToken(r)
	if token == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	loggedOut, err := handler.authService.Logout(ctx, token)
	if err != nil {
		log.Errorf("logout failed: %s", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}

func (handler *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.me")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	user, err := handler.repo.GetByID(ctx, userID)
	if err != nil {
		log.Errorf("failed to get user %d: %s", userID, err)
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	userJson, err := json.Marshal(user)
	if err != nil {
		log.Errorf("failed to marshal user: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, userJson, http.StatusOK)
}

func (handler *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.updateProfile")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var profile Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		log.Tracef("update profile, unmarshal json params: %s", err)
		http.Error(w, "update profile failed", http.StatusBadRequest)
		return
	}

	if profile.Height != nil && *profile.Height <= 0 {
		http.Error(w, "error, height must be positive", http.StatusBadRequest)
		return
	}
	if profile.Weight != nil && *profile.Weight <= 0 {
		http.Error(w, "error, weight must be positive", http.StatusBadRequest)
		return
	}

	if err := handler.profiles.UpdateProfile(ctx, userID, profile); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update profile for user %d: %s", userID, err)
		http.Error(w, "update profile failed", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("failed to marshal profile: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusOK)
}
