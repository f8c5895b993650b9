package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/typesense/typesense-go/typesense/api"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/api/middleware"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
)

type Api struct {
	bot    *bot.Bot
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/webhook/telegram", middleware.TelegramSecretMiddleware(), a.TelegramWebhook)

	router.GET("/users/:id", a.GetUser)
	router.GET("/users/:id/interactions", a.GetUserInteractions)
	router.GET("/users/:id/verifications", a.GetUserVerifications)

	router.POST("/verifications", a.SubmitVerification)
	router.GET("/admin/queue", a.GetReviewQueue)
	router.GET("/admin/queue/:id", a.GetReviewEntry)
	router.POST("/admin/queue/:id/resolve", a.ResolveReviewEntry)

	router.POST("/search/:collection", a.Search)
	return a.router
}

func NewAPI(b *bot.Bot) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware("OPTRIXTRADES"))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{bot: b, router: r}
}

func (a Api) Search(c *gin.Context) {
	collection, passed := c.Params.Get("collection")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection is required. pass id in the route /:collection"})
		return
	}

	var query api.SearchCollectionParams
	err := c.BindJSON(&query)
	if err != nil {
		return
	}

	resp, err := a.bot.Search(collection, &query)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
