package handlers

import (
	"encoding/gob"
	"errors"
	"net/http"
	"strings"

	"pollhub/internal/api"
	"pollhub/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Flash is the single transient notification shown on the next render, the
// snackbar of this application.
type Flash struct {
	Message  string
	Severity string // "success", "warning" or "error"
}

func init() {
	gob.Register(Flash{})
}

func setFlash(c *gin.Context, severity, message string) {
	sess := sessions.Default(c)
	sess.AddFlash(Flash{Message: message, Severity: severity})
	_ = sess.Save()
}

// takeFlash pops the pending notification, if any. Only one message is ever
// active; the latest wins.
func takeFlash(c *gin.Context) *Flash {
	sess := sessions.Default(c)
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	_ = sess.Save()
	if f, ok := flashes[len(flashes)-1].(Flash); ok {
		return &f
	}
	return nil
}

// Render helper to inject common variables like the current user and the
// pending flash before rendering the named template.
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if id, ok := middleware.Identity(c); ok {
		obj["CurrentUser"] = id
	}
	if f := takeFlash(c); f != nil {
		obj["Flash"] = f
	}
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// Error helper
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message})
}

// redirectLogin sends the user to the login view. The session has already
// been evicted by whoever detected the auth rejection.
func redirectLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, "/login")
}

// apiErrorMessage prefers the server's structured message over the fallback.
func apiErrorMessage(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// apiStatus mirrors the server's failure status when it is known, else 502.
func apiStatus(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

// localPath keeps redirects on this site. Anything not starting with a
// single "/" is discarded.
func localPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return ""
	}
	return p
}

// returnTo picks the redirect target after a poll action, defaulting to the
// dashboard.
func returnTo(c *gin.Context) string {
	if p := localPath(c.PostForm("return")); p != "" {
		return p
	}
	return "/dashboard"
}
