package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"pollhub/internal/api"
	"pollhub/internal/session"
	"pollhub/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type ResultsHandler struct {
	api *api.Client
}

func NewResultsHandler(client *api.Client) *ResultsHandler {
	return &ResultsHandler{api: client}
}

type resultRow struct {
	Text    string
	Votes   int
	Percent int
}

// Results shows the aggregated counts of one poll. A poll with no votes at
// all renders every option at 0%.
func (h *ResultsHandler) Results(c *gin.Context) {
	pollID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		RenderError(c, http.StatusBadRequest, "Invalid poll id")
		return
	}

	store := session.NewStore(sessions.Default(c))
	results, err := h.api.Results(c.Request.Context(), store, pollID)
	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		RenderError(c, apiStatus(err), apiErrorMessage(err, "Could not load the results"))
		return
	}

	total := 0
	for _, r := range results.Results {
		total += r.Votes
	}
	rows := make([]resultRow, 0, len(results.Results))
	for _, r := range results.Results {
		rows = append(rows, resultRow{
			Text:    r.Text,
			Votes:   r.Votes,
			Percent: utils.Percent(r.Votes, total),
		})
	}

	var description template.HTML
	if results.Description != "" {
		description = utils.RenderMarkdown(results.Description)
	}
	Render(c, http.StatusOK, "poll/results.html", gin.H{
		"PollID":      pollID,
		"Title":       results.Title,
		"Description": description,
		"Rows":        rows,
		"TotalVotes":  total,
	})
}

// PollVotes shows the per-voter vote log of a poll.
func (h *ResultsHandler) PollVotes(c *gin.Context) {
	pollID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		RenderError(c, http.StatusBadRequest, "Invalid poll id")
		return
	}

	store := session.NewStore(sessions.Default(c))
	ctx := c.Request.Context()

	votes, err := h.api.PollVotes(ctx, store, pollID)
	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		RenderError(c, apiStatus(err), apiErrorMessage(err, "Could not load the vote log"))
		return
	}

	// The title is decoration here; a failed lookup falls back to the id.
	title := fmt.Sprintf("Poll #%d", pollID)
	if poll, err := h.api.GetPoll(ctx, store, pollID); err == nil {
		title = poll.Title
	} else if !errors.Is(err, api.ErrUnauthorized) {
		log.Printf("poll votes: fetch poll %d: %v", pollID, err)
	}

	Render(c, http.StatusOK, "poll/votes.html", gin.H{
		"PollID": pollID,
		"Title":  title,
		"Votes":  votes,
	})
}

// MyVotes shows the current user's vote history.
func (h *ResultsHandler) MyVotes(c *gin.Context) {
	store := session.NewStore(sessions.Default(c))
	votes, err := h.api.MyVotes(c.Request.Context(), store)
	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		RenderError(c, apiStatus(err), apiErrorMessage(err, "Could not load your votes"))
		return
	}

	Render(c, http.StatusOK, "user/votes.html", gin.H{"Votes": votes})
}
