package middleware

import (
	"net/http"
	"net/url"

	"pollhub/internal/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const IdentityKey = "identity"

// LoadIdentity rehydrates the session identity on every request and sets it
// on the context. A token that fails to decode is evicted here, so by the
// time any handler runs the request is either authenticated or anonymous,
// with no in-between state to guard against.
func LoadIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := session.Load(sessions.Default(c)); ok {
			c.Set(IdentityKey, id)
		}
		c.Next()
	}
}

// AuthRequired ensures a user is logged in, recording the originally
// requested path so login can return there.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(IdentityKey); !ok {
			next := url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, "/login?next="+next)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Identity returns the authenticated identity set by LoadIdentity.
func Identity(c *gin.Context) (session.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return session.Identity{}, false
	}
	id, ok := v.(session.Identity)
	return id, ok
}
