package handlers

import (
	"errors"
	"net/http"

	"pollhub/internal/api"
	"pollhub/internal/middleware"
	"pollhub/internal/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	api *api.Client
}

func NewUserHandler(client *api.Client) *UserHandler {
	return &UserHandler{api: client}
}

// Profile shows the polls created by a given user.
func (h *UserHandler) Profile(c *gin.Context) {
	username := c.Param("username")
	id, _ := middleware.Identity(c)
	sess := sessions.Default(c)

	polls, err := h.api.UserPolls(c.Request.Context(), session.NewStore(sess), username)
	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		RenderError(c, apiStatus(err), apiErrorMessage(err, "Could not load this user's polls"))
		return
	}

	api.SortNewest(polls)
	Render(c, http.StatusOK, "user/profile.html", gin.H{
		"Username": username,
		"Polls":    pollViews(polls, id, session.ResultsShown(sess), retrySelection(sess)),
	})
}
