package handlers

import (
	"errors"
	"log"
	"net/http"

	"pollhub/internal/api"
	"pollhub/internal/session"
	"pollhub/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	api *api.Client
}

func NewVoteHandler(client *api.Client) *VoteHandler {
	return &VoteHandler{api: client}
}

// Vote casts the ballot selection. The poll's card flips to results on
// success and on the already-voted conflict; any other failure leaves the
// ballot as it was so the user can retry.
func (h *VoteHandler) Vote(c *gin.Context) {
	pollID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		RenderError(c, http.StatusBadRequest, "Invalid poll id")
		return
	}

	optionID, err := utils.ParseID(c.PostForm("optionId"))
	if err != nil {
		setFlash(c, "warning", "Select an option before voting")
		c.Redirect(http.StatusFound, returnTo(c))
		return
	}

	sess := sessions.Default(c)
	err = h.api.Vote(c.Request.Context(), session.NewStore(sess), pollID, optionID)
	switch {
	case err == nil:
		// Counts are patched by the refetch after the redirect, never
		// incremented locally.
		session.ShowResults(sess, pollID)
		setFlash(c, "success", "Vote registered")
	case errors.Is(err, api.ErrUnauthorized):
		redirectLogin(c)
		return
	case api.IsAlreadyVoted(err):
		// Expected conflict, not an error: show the results with a warning.
		session.ShowResults(sess, pollID)
		setFlash(c, "warning", apiErrorMessage(err, "You have already voted on this poll"))
	default:
		log.Printf("vote: poll %d option %d: %v", pollID, optionID, err)
		// Keep the selection so the re-rendered ballot pre-checks it.
		session.SaveVoteRetry(sess, pollID, optionID)
		setFlash(c, "error", "Could not register your vote")
	}
	c.Redirect(http.StatusFound, returnTo(c))
}
