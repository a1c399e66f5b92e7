package api

import (
	"sort"
	"time"
)

// Option is one selectable answer within a poll. VoteCount is computed by the
// server; it is never incremented locally.
type Option struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	VoteCount int    `json:"voteCount"`
}

// Poll as returned by the PollHub API. Local copies are never authoritative:
// after a vote they are stale and must be refetched.
type Poll struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	Options     []Option  `json:"options"`
}

// TotalVotes sums the server-computed counts across all options.
func (p Poll) TotalVotes() int {
	total := 0
	for _, o := range p.Options {
		total += o.VoteCount
	}
	return total
}

// NewOption is an option in a poll creation request.
type NewOption struct {
	Text string `json:"text"`
}

// NewPoll is the creation payload. Duration is the poll lifetime in days.
type NewPoll struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	IsPublic    bool        `json:"isPublic"`
	Options     []NewOption `json:"options"`
	Duration    int         `json:"duration"`
}

// OptionResult is one row of the aggregated results endpoint.
type OptionResult struct {
	ID    int64  `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// PollResults is the aggregated view returned by /api/polls/{id}/results.
type PollResults struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Results     []OptionResult `json:"results"`
}

// VoteRecord is a read-only entry of a per-voter vote log.
type VoteRecord struct {
	PollID     int64     `json:"pollId"`
	PollTitle  string    `json:"pollTitle,omitempty"`
	Username   string    `json:"username"`
	OptionText string    `json:"optionText"`
	VotedAt    time.Time `json:"votedAt"`
}

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the account creation payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SortNewest orders polls by creation time descending. The sort is stable so
// the server's order is kept for equal timestamps.
func SortNewest(polls []Poll) {
	sort.SliceStable(polls, func(i, j int) bool {
		return polls[i].CreatedAt.After(polls[j].CreatedAt)
	})
}
