package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/research"
)

type urlsRequest struct {
	URL          string `json:"url" binding:"required"`
	SameHostOnly bool   `json:"same_host_only"`
}

// URLs returns a handler for POST /api/v1/urls: fetch one page and list
// the non-junk URLs it links to.
func URLs(orc *research.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req urlsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		resp, err := orc.ExtractURLs(c.Request.Context(), req.URL, req.SameHostOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
