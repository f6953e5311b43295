// Package api wires the HTTP surface together.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/api/handler"
	"github.com/use-agent/justscrape/api/middleware"
	"github.com/use-agent/justscrape/browser"
	"github.com/use-agent/justscrape/config"
	"github.com/use-agent/justscrape/registry"
	"github.com/use-agent/justscrape/research"
	"github.com/use-agent/justscrape/search"
)

// Deps carries everything the router needs.
type Deps struct {
	Config       *config.Config
	Pool         *browser.Pool
	SearchClient *search.Client
	Registry     *registry.Registry
	Orchestrator *research.Orchestrator
	StartTime    time.Time
}

// NewRouter builds the gin engine.
//
// Middleware order: Recovery and Logger globally; Auth (when enabled) then
// RateLimit on the API group. The health endpoint stays outside auth so
// probes work without credentials.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Pool, d.SearchClient, d.StartTime))

	protected := v1.Group("")
	if d.Config.Auth.Enabled {
		protected.Use(middleware.Auth(d.Config.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(d.Config.RateLimit))

	protected.POST("/search", handler.Search(d.SearchClient))
	protected.POST("/retrieve", handler.Retrieve(d.Orchestrator))
	protected.POST("/research", handler.Research(d.Orchestrator))
	protected.POST("/urls", handler.URLs(d.Orchestrator))

	protected.POST("/registry/domains", handler.RegistryAddDomain(d.Registry))
	protected.GET("/registry/domains", handler.RegistryDomains(d.Registry))
	protected.GET("/registry/domains/:domain", handler.RegistryDomainInfo(d.Registry))
	protected.GET("/registry/urls", handler.RegistryURLs(d.Registry))
	protected.POST("/registry/refresh", handler.RegistryRefresh(d.Registry))
	protected.GET("/registry/stats", handler.RegistryStats(d.Registry))

	return r
}
