package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/snowledge-labs/snowvote/src/api/config"
	"github.com/snowledge-labs/snowvote/src/voting"
)

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	g.Use(cors.New(corsConfig(cfg)))
	attachRoutes(g, cfg, db, rdb)
	return g
}

func corsConfig(cfg config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}

func attachRoutes(g *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client) {
	secret := []byte(cfg.JWTSecret)

	var publisher voting.Publisher
	if rdb != nil {
		publisher = voting.RedisPublisher{Rdb: rdb}
	}
	svc := voting.NewService(db, publisher)

	auth := NewAuth(rdb, secret, db)
	proposals := NewProposals(db, svc)
	votes := NewVotes(db, svc)

	v1 := g.Group("/v1")
	{
		v1.POST("/auth/challenge", auth.Challenge)
		v1.POST("/auth/verify", auth.Verify)

		secured := v1.Group("")
		secured.Use(JWT(secret))
		secured.POST("/communities/:id/proposals", proposals.Submit)
		secured.GET("/communities/:id/proposals", proposals.List)
		secured.GET("/proposals/:id", proposals.Get)
		secured.POST("/proposals/:id/votes", votes.Cast)
		secured.GET("/proposals/:id/votes", votes.Summary)
	}
}
