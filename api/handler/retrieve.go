package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/models"
	"github.com/use-agent/justscrape/research"
)

type retrieveRequest struct {
	URL            string   `json:"url" binding:"required"`
	Method         string   `json:"method"`
	Facets         []string `json:"facets"`
	Selector       string   `json:"selector"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

var validMethods = map[string]models.FetchMethod{
	"":         models.MethodAuto,
	"auto":     models.MethodAuto,
	"static":   models.MethodStatic,
	"rendered": models.MethodRendered,
}

var validFacets = map[string]models.Facet{
	"text":     models.FacetText,
	"metadata": models.FacetMetadata,
	"links":    models.FacetLinks,
	"images":   models.FacetImages,
	"raw_html": models.FacetRawHTML,
}

// Retrieve returns a handler for POST /api/v1/retrieve: fetch one URL and
// classify the outcome. Unusable pages are a 200 with the verdict in the
// body; only hard failures map to error statuses.
func Retrieve(orc *research.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req retrieveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		method, ok := validMethods[req.Method]
		if !ok {
			badRequest(c, "method must be one of auto, static, rendered")
			return
		}

		facets := make([]models.Facet, 0, len(req.Facets))
		for _, f := range req.Facets {
			facet, ok := validFacets[f]
			if !ok {
				badRequest(c, "unknown facet "+f)
				return
			}
			facets = append(facets, facet)
		}

		resp := orc.Retrieve(c.Request.Context(), &models.FetchRequest{
			URL:      req.URL,
			Method:   method,
			Facets:   facets,
			Selector: req.Selector,
			Timeout:  time.Duration(req.TimeoutSeconds) * time.Second,
		})

		if resp.Error != nil {
			c.JSON(statusForCode(resp.Error.Code), resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
