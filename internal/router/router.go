package router

import (
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"pollhub/internal/api"
	"pollhub/internal/handlers"
	"pollhub/internal/middleware"

	"github.com/dustin/go-humanize"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, client *api.Client) {
	// Handlers
	authHandler := handlers.NewAuthHandler(client)
	pollHandler := handlers.NewPollHandler(client)
	voteHandler := handlers.NewVoteHandler(client)
	resultsHandler := handlers.NewResultsHandler(client)
	userHandler := handlers.NewUserHandler(client)

	// Public Routes
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", authHandler.Login)
	r.GET("/signup", authHandler.ShowRegister)
	r.POST("/signup", authHandler.Register)
	r.GET("/logout", authHandler.Logout)

	// Protected Routes
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/dashboard")
		})
		authorized.GET("/dashboard", pollHandler.Dashboard)

		authorized.GET("/polls", pollHandler.ListAll)
		authorized.GET("/polls/new", pollHandler.ShowCreate)
		authorized.POST("/polls", pollHandler.Create)
		authorized.GET("/polls/:id", pollHandler.Detail)
		authorized.POST("/polls/:id/vote", voteHandler.Vote)
		authorized.POST("/polls/:id/results/toggle", pollHandler.ToggleResults)
		authorized.GET("/polls/:id/results", resultsHandler.Results)
		authorized.GET("/polls/:id/votes", resultsHandler.PollVotes)
		authorized.POST("/polls/:id/delete", pollHandler.Delete)

		authorized.GET("/votes", resultsHandler.MyVotes)
		authorized.GET("/u/:username", userHandler.Profile)
	}
}

// LoadTemplates assembles the multitemplate renderer so every view key maps
// to layout + components + view.
func LoadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	components, err := filepath.Glob(templatesDir + "/components/*.html")
	if err != nil {
		panic(err)
	}

	// Helper to assemble files
	assemble := func(view string) []string {
		files := make([]string, 0, len(layouts)+len(components)+1)
		files = append(files, layouts...)
		files = append(files, components...)
		files = append(files, templatesDir+"/views/"+view)
		return files
	}

	funcMap := template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"timeAgo": func(t time.Time) string {
			return humanize.Time(t)
		},
		"datetime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04")
		},
		"add": func(a, b int) int {
			return a + b
		},
	}

	views := []string{
		"auth/login.html",
		"auth/register.html",
		"poll/dashboard.html",
		"poll/list.html",
		"poll/new.html",
		"poll/detail.html",
		"poll/results.html",
		"poll/votes.html",
		"user/profile.html",
		"user/votes.html",
		"error.html",
	}
	for _, view := range views {
		r.AddFromFilesFuncs(view, funcMap, assemble(view)...)
	}

	return r
}
