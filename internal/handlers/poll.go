package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"pollhub/internal/api"
	"pollhub/internal/middleware"
	"pollhub/internal/session"
	"pollhub/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	api *api.Client
}

func NewPollHandler(client *api.Client) *PollHandler {
	return &PollHandler{api: client}
}

// optionView decorates an option with its computed share of the total.
type optionView struct {
	ID        int64
	Text      string
	VoteCount int
	Percent   int
	Selected  bool
}

// pollView is what the templates render for one poll card.
type pollView struct {
	ID          int64
	Title       string
	Description template.HTML
	CreatedBy   string
	CreatedAt   time.Time
	TotalVotes  int
	Options     []optionView
	ShowResults bool
	CanDelete   bool
}

func newPollView(p api.Poll, id session.Identity, shown map[int64]bool, retry map[int64]int64) pollView {
	total := p.TotalVotes()
	opts := make([]optionView, 0, len(p.Options))
	for _, o := range p.Options {
		opts = append(opts, optionView{
			ID:        o.ID,
			Text:      o.Text,
			VoteCount: o.VoteCount,
			Percent:   utils.Percent(o.VoteCount, total),
			Selected:  retry[p.ID] == o.ID,
		})
	}
	var description template.HTML
	if p.Description != "" {
		description = utils.RenderMarkdown(p.Description)
	}
	return pollView{
		ID:          p.ID,
		Title:       p.Title,
		Description: description,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		TotalVotes:  total,
		Options:     opts,
		ShowResults: shown[p.ID],
		CanDelete:   p.CreatedBy == id.Username || id.IsAdmin(),
	}
}

func pollViews(polls []api.Poll, id session.Identity, shown map[int64]bool, retry map[int64]int64) []pollView {
	views := make([]pollView, 0, len(polls))
	for _, p := range polls {
		views = append(views, newPollView(p, id, shown, retry))
	}
	return views
}

// retrySelection pops the failed-vote selection so exactly one render can
// pre-check the attempted option.
func retrySelection(sess sessions.Session) map[int64]int64 {
	if pollID, optionID, ok := session.TakeVoteRetry(sess); ok {
		return map[int64]int64{pollID: optionID}
	}
	return nil
}

// Dashboard fetches "my polls" and "all polls" concurrently and joins them
// before rendering. If either fetch fails, the join fails as a whole: an auth
// rejection evicts the session and goes to login, anything else renders an
// error notice with no partial data.
func (h *PollHandler) Dashboard(c *gin.Context) {
	id, _ := middleware.Identity(c)
	sess := sessions.Default(c)
	store := session.NewStore(sess)
	ctx := c.Request.Context()

	var (
		mine, all       []api.Poll
		mineErr, allErr error
		wg              sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		mine, mineErr = h.api.MyPolls(ctx, store)
	}()
	go func() {
		defer wg.Done()
		all, allErr = h.api.AllPolls(ctx, store)
	}()
	wg.Wait()

	if errors.Is(mineErr, api.ErrUnauthorized) || errors.Is(allErr, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if mineErr != nil || allErr != nil {
		err := mineErr
		if err == nil {
			err = allErr
		}
		log.Printf("dashboard: fetch polls: %v", err)
		Render(c, apiStatus(err), "poll/dashboard.html", gin.H{
			"Error": apiErrorMessage(err, "Could not load polls"),
		})
		return
	}

	api.SortNewest(mine)
	api.SortNewest(all)
	shown := session.ResultsShown(sess)
	retry := retrySelection(sess)
	Render(c, http.StatusOK, "poll/dashboard.html", gin.H{
		"MyPolls":  pollViews(mine, id, shown, retry),
		"AllPolls": pollViews(all, id, shown, retry),
	})
}

// ListAll shows every poll visible to the user.
func (h *PollHandler) ListAll(c *gin.Context) {
	id, _ := middleware.Identity(c)
	sess := sessions.Default(c)

	polls, err := h.api.AllPolls(c.Request.Context(), session.NewStore(sess))
	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		log.Printf("polls: fetch: %v", err)
		Render(c, apiStatus(err), "poll/list.html", gin.H{
			"Error": apiErrorMessage(err, "Could not load polls"),
		})
		return
	}

	api.SortNewest(polls)
	Render(c, http.StatusOK, "poll/list.html", gin.H{
		"Polls": pollViews(polls, id, session.ResultsShown(sess), retrySelection(sess)),
	})
}

// Detail shows a single poll, as ballot or results depending on the session
// toggle.
func (h *PollHandler) Detail(c *gin.Context) {
	pollID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		RenderError(c, http.StatusBadRequest, "Invalid poll id")
		return
	}

	id, _ := middleware.Identity(c)
	sess := sessions.Default(c)

	poll, err := h.api.GetPoll(c.Request.Context(), session.NewStore(sess), pollID)
	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		RenderError(c, apiStatus(err), apiErrorMessage(err, "Could not load the poll"))
		return
	}

	Render(c, http.StatusOK, "poll/detail.html", gin.H{
		"Poll":   newPollView(poll, id, session.ResultsShown(sess), retrySelection(sess)),
		"Return": c.Request.URL.Path,
	})
}

// pollForm holds the raw creation input so a failed submission re-renders
// with everything the user entered still in place.
type pollForm struct {
	Title       string
	Description string
	IsPublic    bool
	Options     []string
	Duration    int
}

func parsePollForm(c *gin.Context) pollForm {
	return pollForm{
		Title:       strings.TrimSpace(c.PostForm("title")),
		Description: strings.TrimSpace(c.PostForm("description")),
		IsPublic:    c.PostForm("isPublic") != "",
		Options:     c.PostFormArray("options"),
		Duration:    utils.StringToInt(c.PostForm("duration")),
	}
}

func emptyPollForm() pollForm {
	return pollForm{IsPublic: true, Options: []string{"", ""}, Duration: 7}
}

func (f pollForm) trimmedOptions() []string {
	var opts []string
	for _, o := range f.Options {
		if t := strings.TrimSpace(o); t != "" {
			opts = append(opts, t)
		}
	}
	return opts
}

// validate applies the client-side checks; the server is only called when
// all of them pass.
func (f pollForm) validate() map[string]string {
	errs := make(map[string]string)
	if f.Title == "" {
		errs["title"] = "Title is required"
	} else if utf8.RuneCountInString(f.Title) > 120 {
		errs["title"] = "Title must be at most 120 characters"
	}
	if utf8.RuneCountInString(f.Description) > 500 {
		errs["description"] = "Description must be at most 500 characters"
	}
	if len(f.trimmedOptions()) < 2 {
		errs["options"] = "At least 2 non-empty options are required"
	}
	if f.Duration < 1 || f.Duration > 365 {
		errs["duration"] = "Duration must be between 1 and 365 days"
	}
	return errs
}

func (f pollForm) draft() api.NewPoll {
	trimmed := f.trimmedOptions()
	options := make([]api.NewOption, 0, len(trimmed))
	for _, o := range trimmed {
		options = append(options, api.NewOption{Text: o})
	}
	return api.NewPoll{
		Title:       f.Title,
		Description: f.Description,
		IsPublic:    f.IsPublic,
		Options:     options,
		Duration:    f.Duration,
	}
}

func (h *PollHandler) ShowCreate(c *gin.Context) {
	Render(c, http.StatusOK, "poll/new.html", gin.H{
		"Form":   emptyPollForm(),
		"Errors": map[string]string{},
	})
}

// Create validates locally, then submits. On any failure the form re-renders
// with the entered data intact; the dashboard refetch after the redirect
// picks up the server's canonical copy instead of an optimistic insert.
func (h *PollHandler) Create(c *gin.Context) {
	form := parsePollForm(c)
	if errs := form.validate(); len(errs) > 0 {
		Render(c, http.StatusBadRequest, "poll/new.html", gin.H{
			"Form":   form,
			"Errors": errs,
		})
		return
	}

	poll, err := h.api.CreatePoll(c.Request.Context(), session.NewStore(sessions.Default(c)), form.draft())
	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		Render(c, apiStatus(err), "poll/new.html", gin.H{
			"Form":   form,
			"Errors": map[string]string{},
			"Error":  apiErrorMessage(err, "Could not create the poll"),
		})
		return
	}

	log.Printf("poll created: %d %q by %s", poll.ID, poll.Title, poll.CreatedBy)
	setFlash(c, "success", "Poll created")
	c.Redirect(http.StatusFound, "/dashboard")
}

// ToggleResults flips a poll card between ballot and results display.
func (h *PollHandler) ToggleResults(c *gin.Context) {
	pollID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		RenderError(c, http.StatusBadRequest, "Invalid poll id")
		return
	}

	sess := sessions.Default(c)
	if c.PostForm("show") == "1" {
		session.ShowResults(sess, pollID)
	} else {
		session.HideResults(sess, pollID)
	}
	c.Redirect(http.StatusFound, returnTo(c))
}

// Delete removes a poll after the template-side confirmation. Owners use the
// regular endpoint, admins the admin one; on failure the poll stays in place.
func (h *PollHandler) Delete(c *gin.Context) {
	pollID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		RenderError(c, http.StatusBadRequest, "Invalid poll id")
		return
	}

	id, _ := middleware.Identity(c)
	store := session.NewStore(sessions.Default(c))
	ctx := c.Request.Context()

	poll, err := h.api.GetPoll(ctx, store, pollID)
	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		setFlash(c, "error", apiErrorMessage(err, "Could not delete the poll"))
		c.Redirect(http.StatusFound, returnTo(c))
		return
	}

	switch {
	case poll.CreatedBy == id.Username:
		err = h.api.DeletePoll(ctx, store, pollID)
	case id.IsAdmin():
		err = h.api.AdminDeletePoll(ctx, store, pollID)
	default:
		setFlash(c, "error", "Only the poll owner can delete it")
		c.Redirect(http.StatusFound, returnTo(c))
		return
	}

	if errors.Is(err, api.ErrUnauthorized) {
		redirectLogin(c)
		return
	}
	if err != nil {
		log.Printf("delete poll %d: %v", pollID, err)
		setFlash(c, "error", apiErrorMessage(err, "Could not delete the poll"))
	} else {
		session.HideResults(sessions.Default(c), pollID)
		setFlash(c, "success", "Poll deleted")
	}
	c.Redirect(http.StatusFound, returnTo(c))
}
