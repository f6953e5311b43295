package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/research"
)

const maxResearchSources = 10

type researchRequest struct {
	Query           string `json:"query" binding:"required"`
	Limit           int    `json:"limit"`
	AllowRendering  *bool  `json:"allow_rendering"`
	MaxContentChars int    `json:"max_content_chars"`
}

// Research returns a handler for POST /api/v1/research: search, retrieve
// all hits concurrently, and split them into usable sources and failures.
func Research(orc *research.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req researchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if req.Limit > maxResearchSources {
			req.Limit = maxResearchSources
		}

		// Rendering defaults on; absent field and explicit true both allow it.
		allowRendering := req.AllowRendering == nil || *req.AllowRendering

		resp := orc.Research(c.Request.Context(), req.Query, research.Options{
			MaxSources:      req.Limit,
			MaxContentChars: req.MaxContentChars,
			AllowRendering:  allowRendering,
		})
		c.JSON(http.StatusOK, resp)
	}
}
