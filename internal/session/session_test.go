package session

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func makeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestDecodeToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("admin role", func(t *testing.T) {
		id, err := DecodeToken(makeToken(t, jwt.MapClaims{"sub": "alice", "role": "ADMIN", "exp": exp}))
		if err != nil {
			t.Fatalf("DecodeToken: %v", err)
		}
		if id.Username != "alice" || id.Role != RoleAdmin || !id.IsAdmin() {
			t.Errorf("identity = %+v, want admin alice", id)
		}
	})

	t.Run("role defaults to user", func(t *testing.T) {
		id, err := DecodeToken(makeToken(t, jwt.MapClaims{"sub": "bob", "exp": exp}))
		if err != nil {
			t.Fatalf("DecodeToken: %v", err)
		}
		if id.Role != RoleUser || id.IsAdmin() {
			t.Errorf("role = %q, want USER", id.Role)
		}
	})

	t.Run("role is case insensitive", func(t *testing.T) {
		id, err := DecodeToken(makeToken(t, jwt.MapClaims{"sub": "carol", "role": "admin", "exp": exp}))
		if err != nil {
			t.Fatalf("DecodeToken: %v", err)
		}
		if id.Role != RoleAdmin {
			t.Errorf("role = %q, want ADMIN", id.Role)
		}
	})

	t.Run("token is kept on the identity", func(t *testing.T) {
		token := makeToken(t, jwt.MapClaims{"sub": "alice", "exp": exp})
		id, err := DecodeToken(token)
		if err != nil {
			t.Fatalf("DecodeToken: %v", err)
		}
		if id.Token != token {
			t.Error("identity does not carry the raw token")
		}
	})
}

func TestDecodeTokenRejects(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"no subject", makeToken(t, jwt.MapClaims{"role": "USER"})},
		{"expired", makeToken(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Minute).Unix()})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if id, err := DecodeToken(tc.token); err == nil {
				t.Errorf("DecodeToken accepted %q as %+v", tc.token, id)
			}
		})
	}
}

// browser carries cookies between requests like a real user agent would.
type browser struct {
	app     http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.app.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return w
}

func newSessionApp(t *testing.T) *browser {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-key"))))

	r.GET("/save", func(c *gin.Context) {
		id, err := Save(sessions.Default(c), c.Query("token"))
		if err != nil {
			c.String(http.StatusBadRequest, "save: %v", err)
			return
		}
		c.String(http.StatusOK, "%s %s", id.Username, id.Role)
	})
	r.GET("/load", func(c *gin.Context) {
		id, ok := Load(sessions.Default(c))
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, "%s %s", id.Username, id.Role)
	})
	r.GET("/clear", func(c *gin.Context) {
		Clear(sessions.Default(c))
		c.String(http.StatusOK, "cleared")
	})
	r.GET("/plant", func(c *gin.Context) {
		// Simulates a token that went stale while persisted.
		sess := sessions.Default(c)
		sess.Set(tokenKey, c.Query("token"))
		if err := sess.Save(); err != nil {
			c.String(http.StatusInternalServerError, "plant: %v", err)
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/evict-twice", func(c *gin.Context) {
		store := NewStore(sessions.Default(c))
		store.Evict()
		store.Evict()
		c.String(http.StatusOK, "token=%q", store.Token())
	})
	r.GET("/show", func(c *gin.Context) {
		var id int64
		fmt.Sscanf(c.Query("id"), "%d", &id)
		ShowResults(sessions.Default(c), id)
		c.String(http.StatusOK, "ok")
	})
	r.GET("/hide", func(c *gin.Context) {
		var id int64
		fmt.Sscanf(c.Query("id"), "%d", &id)
		HideResults(sessions.Default(c), id)
		c.String(http.StatusOK, "ok")
	})
	r.GET("/shown", func(c *gin.Context) {
		shown := ResultsShown(sessions.Default(c))
		c.String(http.StatusOK, "5:%v 9:%v", shown[5], shown[9])
	})
	r.GET("/shown-id", func(c *gin.Context) {
		var id int64
		fmt.Sscanf(c.Query("id"), "%d", &id)
		c.String(http.StatusOK, "%v", ResultsShown(sessions.Default(c))[id])
	})
	r.GET("/retry-save", func(c *gin.Context) {
		SaveVoteRetry(sessions.Default(c), 7, 3)
		c.String(http.StatusOK, "ok")
	})
	r.GET("/retry-take", func(c *gin.Context) {
		pollID, optionID, ok := TakeVoteRetry(sessions.Default(c))
		c.String(http.StatusOK, "%d %d %v", pollID, optionID, ok)
	})

	return &browser{app: r, cookies: make(map[string]*http.Cookie)}
}

func TestSaveLoadClearRoundTrip(t *testing.T) {
	b := newSessionApp(t)
	token := makeToken(t, jwt.MapClaims{"sub": "alice", "role": "ADMIN", "exp": time.Now().Add(time.Hour).Unix()})

	if w := b.get(t, "/save?token="+token); w.Body.String() != "alice ADMIN" {
		t.Fatalf("save = %q", w.Body.String())
	}
	if w := b.get(t, "/load"); w.Body.String() != "alice ADMIN" {
		t.Fatalf("load after save = %q, want alice ADMIN", w.Body.String())
	}
	if w := b.get(t, "/clear"); w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if w := b.get(t, "/load"); w.Body.String() != "anonymous" {
		t.Fatalf("load after clear = %q, want anonymous", w.Body.String())
	}
	// Clearing again is a no-op.
	b.get(t, "/clear")
	if w := b.get(t, "/load"); w.Body.String() != "anonymous" {
		t.Fatalf("load after double clear = %q, want anonymous", w.Body.String())
	}
}

func TestSaveRejectsBadToken(t *testing.T) {
	b := newSessionApp(t)
	if w := b.get(t, "/save?token=garbage"); w.Code != http.StatusBadRequest {
		t.Fatalf("save garbage token: status = %d, want 400", w.Code)
	}
	if w := b.get(t, "/load"); w.Body.String() != "anonymous" {
		t.Fatalf("load = %q, want anonymous after rejected save", w.Body.String())
	}
}

func TestLoadEvictsStaleToken(t *testing.T) {
	b := newSessionApp(t)
	token := makeToken(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Minute).Unix()})

	if w := b.get(t, "/plant?token="+token); w.Code != http.StatusOK {
		t.Fatalf("plant: %s", w.Body.String())
	}
	if w := b.get(t, "/load"); w.Body.String() != "anonymous" {
		t.Fatalf("load = %q, want anonymous for expired token", w.Body.String())
	}
	// The eviction is durable, not a per-request decision.
	if w := b.get(t, "/evict-twice"); w.Body.String() != `token=""` {
		t.Fatalf("evict-twice = %q, want empty token", w.Body.String())
	}
}

func TestStoreEvictIsIdempotent(t *testing.T) {
	b := newSessionApp(t)
	token := makeToken(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()})
	b.get(t, "/save?token="+token)

	if w := b.get(t, "/evict-twice"); w.Body.String() != `token=""` {
		t.Fatalf("evict-twice = %q, want empty token", w.Body.String())
	}
	if w := b.get(t, "/load"); w.Body.String() != "anonymous" {
		t.Fatalf("load after evict = %q, want anonymous", w.Body.String())
	}
}

func TestResultsToggleRoundTrip(t *testing.T) {
	b := newSessionApp(t)

	if w := b.get(t, "/shown"); w.Body.String() != "5:false 9:false" {
		t.Fatalf("initial shown = %q", w.Body.String())
	}
	b.get(t, "/show?id=5")
	b.get(t, "/show?id=9")
	b.get(t, "/show?id=5") // duplicate is a no-op
	if w := b.get(t, "/shown"); w.Body.String() != "5:true 9:true" {
		t.Fatalf("shown = %q, want both on", w.Body.String())
	}
	b.get(t, "/hide?id=5")
	if w := b.get(t, "/shown"); w.Body.String() != "5:false 9:true" {
		t.Fatalf("shown = %q, want only 9 on", w.Body.String())
	}
}

func TestResultsShownDropsOldestOverCap(t *testing.T) {
	b := newSessionApp(t)
	for i := 1; i <= maxResultsShown+1; i++ {
		b.get(t, fmt.Sprintf("/show?id=%d", i))
	}
	// The set stays bounded so the session keeps fitting in its cookie.
	if w := b.get(t, "/shown-id?id=1"); w.Body.String() != "false" {
		t.Errorf("oldest id still shown = %q, want evicted", w.Body.String())
	}
	if w := b.get(t, "/shown-id?id=2"); w.Body.String() != "true" {
		t.Errorf("id 2 shown = %q, want kept", w.Body.String())
	}
	if w := b.get(t, fmt.Sprintf("/shown-id?id=%d", maxResultsShown+1)); w.Body.String() != "true" {
		t.Errorf("newest id shown = %q, want kept", w.Body.String())
	}
}

func TestVoteRetryIsSingleUse(t *testing.T) {
	b := newSessionApp(t)

	if w := b.get(t, "/retry-take"); w.Body.String() != "0 0 false" {
		t.Fatalf("take with nothing pending = %q", w.Body.String())
	}
	b.get(t, "/retry-save")
	if w := b.get(t, "/retry-take"); w.Body.String() != "7 3 true" {
		t.Fatalf("take = %q, want the saved selection", w.Body.String())
	}
	if w := b.get(t, "/retry-take"); w.Body.String() != "0 0 false" {
		t.Fatalf("second take = %q, want nothing pending", w.Body.String())
	}
}
