package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/models"
	"github.com/use-agent/justscrape/registry"
)

type addDomainRequest struct {
	Domain     string `json:"domain" binding:"required"`
	SitemapURL string `json:"sitemap_url"`
}

// RegistryAddDomain returns a handler for POST /api/v1/registry/domains:
// fetch and store a domain's sitemap, auto-discovering the location when
// none is given.
func RegistryAddDomain(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addDomainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := reg.AddDomain(c.Request.Context(), req.Domain, req.SitemapURL); err != nil {
			respondError(c, err)
			return
		}

		info, err := reg.Info(c.Request.Context(), req.Domain)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// RegistryDomains returns a handler for GET /api/v1/registry/domains.
func RegistryDomains(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		domains, err := reg.Domains(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"domains": domains, "count": len(domains)})
	}
}

// RegistryDomainInfo returns a handler for GET /api/v1/registry/domains/:domain.
func RegistryDomainInfo(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := reg.Info(c.Request.Context(), c.Param("domain"))
		if err != nil {
			respondError(c, err)
			return
		}
		if info == nil {
			c.JSON(http.StatusNotFound, errorEnvelope{Error: &models.ErrorDetail{
				Code:    models.ErrCodeInvalidInput,
				Message: "domain not registered",
			}})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// RegistryURLs returns a handler for GET /api/v1/registry/urls. Query
// params: domain (required), limit, offset, unscraped_only.
func RegistryURLs(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := c.Query("domain")
		if domain == "" {
			badRequest(c, "domain query parameter is required")
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		unscrapedOnly := c.Query("unscraped_only") == "true"

		urls, err := reg.URLs(c.Request.Context(), domain, limit, offset, unscrapedOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"domain": domain,
			"urls":   urls,
			"count":  len(urls),
		})
	}
}

type refreshRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// RegistryRefresh returns a handler for POST /api/v1/registry/refresh:
// re-fetch a domain's sitemap regardless of staleness.
func RegistryRefresh(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := reg.Refresh(c.Request.Context(), req.Domain); err != nil {
			respondError(c, err)
			return
		}

		info, err := reg.Info(c.Request.Context(), req.Domain)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// RegistryStats returns a handler for GET /api/v1/registry/stats.
func RegistryStats(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := reg.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
