// Package session owns the client-held identity: the bearer token and the
// claims decoded from it, persisted in the cookie session so it survives
// restarts of the browser and of this process.
package session

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/golang-jwt/jwt/v5"
)

// The results toggle set is stored as a session value, which the cookie
// store gob-encodes.
func init() {
	gob.Register([]int64{})
}

// Persisted keys. The token is the opaque credential; the user record is a
// convenience copy of the claims decoded from it.
const (
	tokenKey        = "token"
	userKey         = "user"
	resultsShownKey = "results_shown"
	retryVoteKey    = "retry_vote"
)

// The whole session rides in a browser cookie of roughly 4KB, so the toggle
// set keeps only the most recently toggled polls.
const maxResultsShown = 50

// Role is the access level encoded in the token claims.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Identity answers "who is logged in". It is derived from the token claims,
// never from a server-echoed username, so the displayed role can never
// exceed what the credential actually grants.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Token    string `json:"-"`
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// DecodeToken extracts the identity encoded in a bearer token: username from
// the subject claim, role from the role claim (USER when absent). The
// signature is not verified here; the API server verifies every
// authenticated call. Malformed or expired tokens are still rejected so they
// get evicted instead of riding along until the next 401.
func DecodeToken(token string) (Identity, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Identity{}, fmt.Errorf("session: decode token: %w", err)
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("session: token carries no subject")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return Identity{}, errors.New("session: token expired")
	}

	role := RoleUser
	if strings.EqualFold(claims.Role, string(RoleAdmin)) {
		role = RoleAdmin
	}
	return Identity{Username: claims.Subject, Role: role, Token: token}, nil
}

// Save decodes the token and, only if it decodes, persists it together with
// the user record. Returns the identity now logged in.
func Save(sess sessions.Session, token string) (Identity, error) {
	id, err := DecodeToken(token)
	if err != nil {
		return Identity{}, err
	}

	record, err := json.Marshal(id)
	if err != nil {
		return Identity{}, fmt.Errorf("session: encode user record: %w", err)
	}

	sess.Set(tokenKey, token)
	sess.Set(userKey, string(record))
	if err := sess.Save(); err != nil {
		return Identity{}, fmt.Errorf("session: persist: %w", err)
	}
	return id, nil
}

// Load rehydrates the identity from persisted storage. A missing token means
// anonymous; a token that no longer decodes is evicted and also reported as
// anonymous rather than as an error.
func Load(sess sessions.Session) (Identity, bool) {
	token, _ := sess.Get(tokenKey).(string)
	if token == "" {
		return Identity{}, false
	}
	id, err := DecodeToken(token)
	if err != nil {
		Clear(sess)
		return Identity{}, false
	}
	return id, true
}

// Clear evicts the persisted token and user record. Clearing already-empty
// storage is a no-op, so concurrent eviction attempts are harmless.
func Clear(sess sessions.Session) {
	sess.Delete(tokenKey)
	sess.Delete(userKey)
	sess.Delete(resultsShownKey)
	sess.Delete(retryVoteKey)
	// Save errors here mean we could not write the cookie; the in-memory
	// values are gone either way and the next request starts anonymous.
	_ = sess.Save()
}

// Store adapts a request's session to the api.TokenSource read on every
// outgoing call. The token comes from durable storage at call time, not from
// in-memory state, and the mutex keeps concurrent list fetches from racing
// on eviction.
type Store struct {
	mu   sync.Mutex
	sess sessions.Session
}

func NewStore(sess sessions.Session) *Store {
	return &Store{sess: sess}
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, _ := s.sess.Get(tokenKey).(string)
	return token
}

func (s *Store) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	Clear(s.sess)
}

// ShowResults records that the poll's card should render results instead of
// the ballot. The flag set is transient UI state kept with the session.
func ShowResults(sess sessions.Session, pollID int64) {
	ids := shownIDs(sess)
	for _, id := range ids {
		if id == pollID {
			return
		}
	}
	ids = append(ids, pollID)
	if len(ids) > maxResultsShown {
		ids = ids[len(ids)-maxResultsShown:]
	}
	sess.Set(resultsShownKey, ids)
	_ = sess.Save()
}

// HideResults flips the poll's card back to the ballot.
func HideResults(sess sessions.Session, pollID int64) {
	ids := shownIDs(sess)
	kept := ids[:0]
	for _, id := range ids {
		if id != pollID {
			kept = append(kept, id)
		}
	}
	sess.Set(resultsShownKey, kept)
	_ = sess.Save()
}

// ResultsShown returns the set of polls whose results view is toggled on.
func ResultsShown(sess sessions.Session) map[int64]bool {
	shown := make(map[int64]bool)
	for _, id := range shownIDs(sess) {
		shown[id] = true
	}
	return shown
}

func shownIDs(sess sessions.Session) []int64 {
	ids, _ := sess.Get(resultsShownKey).([]int64)
	return ids
}

// SaveVoteRetry keeps the ballot selection of a failed vote so the next
// render can pre-check it and the user retries with one click.
func SaveVoteRetry(sess sessions.Session, pollID, optionID int64) {
	sess.Set(retryVoteKey, []int64{pollID, optionID})
	_ = sess.Save()
}

// TakeVoteRetry pops the pending selection, if any. Like a flash, it
// survives exactly one render.
func TakeVoteRetry(sess sessions.Session) (pollID, optionID int64, ok bool) {
	pair, _ := sess.Get(retryVoteKey).([]int64)
	if len(pair) != 2 {
		return 0, 0, false
	}
	sess.Delete(retryVoteKey)
	_ = sess.Save()
	return pair[0], pair[1], true
}
