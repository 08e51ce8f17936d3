package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"picking-tracker-backend/internal/store"
)

const sessionName = "picking-tracker-session"

// NewSessionStore builds the cookie store for login sessions.
func NewSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "picking-tracker-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // internal tool, plain HTTP on the shop LAN
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *Handler) isAuthenticated(c *gin.Context) bool {
	session, err := h.sessions.Get(c.Request, sessionName)
	if err != nil {
		return false
	}
	auth, ok := session.Values["authenticated"].(bool)
	return ok && auth
}

func (h *Handler) username(c *gin.Context) string {
	session, err := h.sessions.Get(c.Request, sessionName)
	if err != nil {
		return ""
	}
	username, _ := session.Values["username"].(string)
	return username
}

// RequireAuth rejects unauthenticated requests before any data access.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.isAuthenticated(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.store.UserByUsername(c.Request.Context(), req.Username)
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	session, _ := h.sessions.Get(c.Request, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = user.Username
	if err := session.Save(c.Request, c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

// Logout handles DELETE /api/session.
func (h *Handler) Logout(c *gin.Context) {
	session, _ := h.sessions.Get(c.Request, sessionName)
	session.Values["authenticated"] = false
	delete(session.Values, "username")
	session.Options.MaxAge = -1
	if err := session.Save(c.Request, c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(c *gin.Context) {
	if !h.isAuthenticated(c) {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "username": h.username(c)})
}

// EnsureDefaultUser bootstraps an admin/admin account when the user table is
// empty, so a fresh install can be logged into. Called from startup wiring,
// not from router construction.
func EnsureDefaultUser(ctx context.Context, s store.Store) {
	exists, err := s.AnyUsers(ctx)
	if err != nil && err != gorm.ErrRecordNotFound {
		log.Printf("Warning: could not check for users: %v", err)
		return
	}
	if exists {
		return
	}
	hash, err := hashPassword("admin")
	if err != nil {
		log.Printf("Warning: could not hash default password: %v", err)
		return
	}
	if err := s.CreateUser(ctx, "admin", hash); err != nil {
		log.Printf("Warning: could not create default user: %v", err)
		return
	}
	log.Println("Created default user 'admin' (password 'admin') - change it.")
}
