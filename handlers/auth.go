package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"qrvend-backend/config"
	"qrvend-backend/middleware"
)

type AuthHandler struct {
	db     *pgxpool.Pool
	cfg    *config.Config
	logger *zap.Logger
}

func NewAuthHandler(db *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/token: verifies the bcrypt-hashed password
// and issues a bearer token carrying the user's role.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var hashedPassword, role string
	var disabled bool
	err := h.db.QueryRow(c,
		"SELECT hashed_password, role, disabled FROM users WHERE username = $1",
		req.Username,
	).Scan(&hashedPassword, &role, &disabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect username or password"})
			return
		}
		h.logger.Error("failed to look up user", zap.Error(err), zap.String("username", req.Username))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database unavailable, please retry"})
		return
	}

	if disabled {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User account is disabled"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect username or password"})
		return
	}

	expire := time.Duration(h.cfg.Auth.TokenExpireMinutes) * time.Minute
	token, err := middleware.GenerateToken(req.Username, role, h.cfg.Auth.JWTSecret, expire)
	if err != nil {
		h.logger.Error("failed to sign token", zap.Error(err), zap.String("username", req.Username))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}
