package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/linguadesk/internal/auth"
	"github.com/geocoder89/linguadesk/internal/config"
	"github.com/geocoder89/linguadesk/internal/domain/user"
	"github.com/geocoder89/linguadesk/internal/http/middlewares"
	"github.com/geocoder89/linguadesk/internal/security"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(id auth.Identity) (string, error)
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	jwt        TokenIssuer
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager TokenIssuer) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		jwt:        jwtManager,
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		logFailure(ctx, "hash password failed", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	email := strings.TrimSpace(req.Email)

	u, err := h.userWriter.Create(cctx, email, hash, strings.TrimSpace(req.Name), user.NormalizeRole(req.Role))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		logFailure(ctx, "create user failed", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
}

// Login answers the same 401 for an unknown email and a wrong password.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	found, err := h.users.GetByEmail(cctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		logFailure(ctx, "lookup user failed", err)
		RespondInternal(ctx, "Could not log in")
		return
	}

	if err := security.CheckPassword(found.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(auth.Identity{
		UserID: found.ID,
		Email:  found.Email,
		Name:   found.Name,
		Role:   found.Role,
	})
	if err != nil {
		logFailure(ctx, "issue access token failed", err)
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"user":        userResponse{ID: found.ID, Email: found.Email, Name: found.Name, Role: found.Role},
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	ctx.JSON(http.StatusOK, userResponse{ID: id.UserID, Email: id.Email, Name: id.Name, Role: id.Role})
}
