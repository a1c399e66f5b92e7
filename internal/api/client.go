package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "http://localhost:3001"

// ErrUnauthorized is returned when the API rejects the session token. The
// client has already evicted the persisted token by the time callers see it;
// whether to redirect is the caller's decision.
var ErrUnauthorized = errors.New("api: unauthorized")

// TokenSource supplies the bearer token attached to an outgoing request and
// is told to drop it when the server rejects it. Implementations read the
// durable session storage at call time, not a cached in-memory copy, and
// Evict must be idempotent: two concurrently failing requests may both call
// it.
type TokenSource interface {
	Token() string
	Evict()
}

// Error carries the server's structured error payload.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsAlreadyVoted reports whether err is the expected-conflict rejection the
// server returns when the user votes twice on the same poll. It is surfaced
// as a warning, not an error.
func IsAlreadyVoted(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "already voted")
}

// Client is the one pre-configured sender for every PollHub API call.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the API at baseURL, falling back to the local
// development address when unset.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do sends one JSON request. The token is read from ts at send time, a 401
// evicts the persisted token and maps to ErrUnauthorized, and any other
// failure status is decoded into *Error with the server's message when the
// payload carries one.
func (c *Client) do(ctx context.Context, ts TokenSource, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if ts != nil {
		if token := ts.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if ts != nil {
			ts.Evict()
		}
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError extracts the structured {message} / {error} payload, falling
// back to the HTTP status text.
func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		} else if payload.Error != "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// Login exchanges credentials for a bearer token. The token itself encodes
// the identity claims; callers decode it rather than trusting an echoed
// username.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, nil, http.MethodPost, "/api/auth/login", creds, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &Error{Status: http.StatusBadGateway, Message: "login response carried no token"}
	}
	return resp.Token, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.do(ctx, nil, http.MethodPost, "/api/users/register", reg, nil)
}

// MyPolls lists polls owned by the current session.
func (c *Client) MyPolls(ctx context.Context, ts TokenSource) ([]Poll, error) {
	var polls []Poll
	if err := c.do(ctx, ts, http.MethodGet, "/api/users/me/polls", nil, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}

// AllPolls lists every poll visible to the current session.
func (c *Client) AllPolls(ctx context.Context, ts TokenSource) ([]Poll, error) {
	var polls []Poll
	if err := c.do(ctx, ts, http.MethodGet, "/api/polls", nil, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}

// GetPoll fetches a single poll.
func (c *Client) GetPoll(ctx context.Context, ts TokenSource, id int64) (Poll, error) {
	var poll Poll
	if err := c.do(ctx, ts, http.MethodGet, fmt.Sprintf("/api/polls/%d", id), nil, &poll); err != nil {
		return Poll{}, err
	}
	return poll, nil
}

// CreatePoll submits a new poll and returns the server's canonical copy.
func (c *Client) CreatePoll(ctx context.Context, ts TokenSource, draft NewPoll) (Poll, error) {
	var poll Poll
	if err := c.do(ctx, ts, http.MethodPost, "/api/polls", draft, &poll); err != nil {
		return Poll{}, err
	}
	return poll, nil
}

// DeletePoll removes a poll the current user owns.
func (c *Client) DeletePoll(ctx context.Context, ts TokenSource, id int64) error {
	return c.do(ctx, ts, http.MethodDelete, fmt.Sprintf("/api/polls/%d", id), nil, nil)
}

// AdminDeletePoll removes any poll through the admin endpoint.
func (c *Client) AdminDeletePoll(ctx context.Context, ts TokenSource, id int64) error {
	return c.do(ctx, ts, http.MethodDelete, fmt.Sprintf("/admin/polls/%d", id), nil, nil)
}

// Vote casts a vote for one option of a poll.
func (c *Client) Vote(ctx context.Context, ts TokenSource, pollID, optionID int64) error {
	path := fmt.Sprintf("/api/polls/%d/vote?optionId=%d", pollID, optionID)
	return c.do(ctx, ts, http.MethodPost, path, nil, nil)
}

// Results fetches the aggregated results of a poll.
func (c *Client) Results(ctx context.Context, ts TokenSource, id int64) (PollResults, error) {
	var results PollResults
	if err := c.do(ctx, ts, http.MethodGet, fmt.Sprintf("/api/polls/%d/results", id), nil, &results); err != nil {
		return PollResults{}, err
	}
	return results, nil
}

// PollVotes fetches the per-voter vote log of a poll.
func (c *Client) PollVotes(ctx context.Context, ts TokenSource, pollID int64) ([]VoteRecord, error) {
	var votes []VoteRecord
	if err := c.do(ctx, ts, http.MethodGet, fmt.Sprintf("/api/votes/poll/%d", pollID), nil, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

// MyVotes fetches the current user's vote history.
func (c *Client) MyVotes(ctx context.Context, ts TokenSource) ([]VoteRecord, error) {
	var votes []VoteRecord
	if err := c.do(ctx, ts, http.MethodGet, "/api/users/me/votes", nil, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

// UserPolls lists polls created by the given user.
func (c *Client) UserPolls(ctx context.Context, ts TokenSource, username string) ([]Poll, error) {
	var polls []Poll
	path := "/api/users/" + url.PathEscape(username) + "/polls"
	if err := c.do(ctx, ts, http.MethodGet, path, nil, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}
