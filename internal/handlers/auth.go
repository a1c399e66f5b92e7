package handlers

import (
	"log"
	"net/http"
	"net/mail"
	"strings"

	"pollhub/internal/api"
	"pollhub/internal/middleware"
	"pollhub/internal/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	api *api.Client
}

func NewAuthHandler(client *api.Client) *AuthHandler {
	return &AuthHandler{api: client}
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	if _, ok := middleware.Identity(c); ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	Render(c, http.StatusOK, "auth/login.html", gin.H{"Next": localPath(c.Query("next"))})
}

func (h *AuthHandler) Login(c *gin.Context) {
	// Logging in again while authenticated is invalid; go to the dashboard.
	if _, ok := middleware.Identity(c); ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}

	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	next := localPath(c.PostForm("next"))

	if username == "" || password == "" {
		Render(c, http.StatusBadRequest, "auth/login.html", gin.H{
			"Error":    "Username and password are required",
			"Username": username,
			"Next":     next,
		})
		return
	}

	token, err := h.api.Login(c.Request.Context(), api.Credentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
			"Error":    apiErrorMessage(err, "Invalid username or password"),
			"Username": username,
			"Next":     next,
		})
		return
	}

	// The token claims, not the submitted form, decide who is logged in.
	id, err := session.Save(sessions.Default(c), token)
	if err != nil {
		log.Printf("login: rejected token for %q: %v", username, err)
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
			"Error":    "Login failed: the server returned an invalid token",
			"Username": username,
			"Next":     next,
		})
		return
	}

	log.Printf("login: %s (%s)", id.Username, id.Role)
	if next != "" {
		c.Redirect(http.StatusFound, next)
		return
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	Render(c, http.StatusOK, "auth/register.html", nil)
}

func (h *AuthHandler) Register(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	retry := func(code int, message string) {
		Render(c, code, "auth/register.html", gin.H{
			"Error":    message,
			"Username": username,
			"Email":    email,
		})
	}

	if username == "" {
		retry(http.StatusBadRequest, "Username is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		retry(http.StatusBadRequest, "A valid email address is required")
		return
	}
	if len(password) < 6 {
		retry(http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	err := h.api.Register(c.Request.Context(), api.Registration{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		retry(apiStatus(err), apiErrorMessage(err, "Could not create the account"))
		return
	}

	setFlash(c, "success", "Account created, please sign in")
	c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session.Clear(sessions.Default(c))
	c.Redirect(http.StatusFound, "/login")
}
