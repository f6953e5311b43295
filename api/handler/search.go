package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/search"
)

const (
	defaultSearchCount = 5
	maxSearchCount     = 20
)

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	Count int    `json:"count"`
}

// Search returns a handler for POST /api/v1/search. The response carries
// the provider outcome verbatim: a failed search is still HTTP 200 with
// success=false, because the API call itself worked.
func Search(client *search.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if req.Count <= 0 {
			req.Count = defaultSearchCount
		}
		if req.Count > maxSearchCount {
			req.Count = maxSearchCount
		}

		c.JSON(http.StatusOK, client.Search(c.Request.Context(), req.Query, req.Count))
	}
}
