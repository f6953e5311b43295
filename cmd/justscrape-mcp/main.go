package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// searchResponse mirrors the justscrape search API response model.
type searchResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		URL      string `json:"url"`
		Snippet  string `json:"snippet"`
	} `json:"results"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Cached  bool   `json:"cached"`
}

// retrieveResponse mirrors the justscrape retrieve API response model.
type retrieveResponse struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Signals  *struct {
		ContentLength  int    `json:"content_length"`
		Method         string `json:"method"`
		TokensEstimate int    `json:"tokens_estimate"`
	} `json:"signals"`
	Classification *struct {
		Status     string   `json:"status"`
		Confidence string   `json:"confidence"`
		Patterns   []string `json:"detected_patterns,omitempty"`
	} `json:"classification"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// researchResponse mirrors the justscrape research API response model.
type researchResponse struct {
	Query   string `json:"query"`
	Sources []struct {
		Position      int    `json:"position"`
		URL           string `json:"url"`
		Title         string `json:"title"`
		Content       string `json:"content"`
		Method        string `json:"method"`
		ContentLength int    `json:"content_length"`
		DuplicateOf   int    `json:"duplicate_of,omitempty"`
	} `json:"sources"`
	Failures []struct {
		Position int      `json:"position"`
		URL      string   `json:"url"`
		Status   string   `json:"status"`
		Reason   []string `json:"reason,omitempty"`
	} `json:"failures"`
	Metrics struct {
		Total      int     `json:"total"`
		Usable     int     `json:"usable_count"`
		UsableRate float64 `json:"usable_rate"`
	} `json:"metrics"`
	SearchError string `json:"search_error,omitempty"`
}

// urlsResponse mirrors the justscrape urls API response model.
type urlsResponse struct {
	SourceURL    string   `json:"source_url"`
	URLs         []string `json:"urls"`
	Count        int      `json:"count"`
	JunkFiltered int      `json:"junk_filtered"`
	Error        *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("JUSTSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: only needed when the server runs with auth enabled.
	apiKey := os.Getenv("JUSTSCRAPE_API_KEY")

	s := server.NewMCPServer(
		"justscrape",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_sources",
		mcp.WithDescription("Search the web and return ranked results (title, URL, snippet) without retrieving page content."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of results to return (default: 5, max: 20)"),
		),
	)
	s.AddTool(searchTool, handleSearchSources(apiURL, apiKey))

	retrieveTool := mcp.NewTool("retrieve_source",
		mcp.WithDescription("Retrieve one URL as markdown, escalating from a plain HTTP fetch to a headless browser when the page needs JavaScript. The response includes a usability classification (usable/thin/blocked)."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to retrieve"),
		),
		mcp.WithString("method",
			mcp.Description("Fetch method: 'auto' (default, static with rendered fallback), 'static', or 'rendered'"),
			mcp.Enum("auto", "static", "rendered"),
		),
		mcp.WithString("selector",
			mcp.Description("Optional CSS selector to scope extraction to part of the page"),
		),
	)
	s.AddTool(retrieveTool, handleRetrieveSource(apiURL, apiKey))

	researchTool := mcp.NewTool("research_with_sources",
		mcp.WithDescription("Search the web for a query and retrieve every hit in parallel, returning usable sources as markdown plus a list of failures (bot walls, thin pages). Best single call for gathering reading material on a topic."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The research query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of sources to retrieve (default: 5, max: 10)"),
		),
		mcp.WithBoolean("allow_rendering",
			mcp.Description("Permit headless-browser rendering for JavaScript-heavy pages (default: true; disable for speed)"),
		),
	)
	s.AddTool(researchTool, handleResearch(apiURL, apiKey))

	urlsTool := mcp.NewTool("extract_urls",
		mcp.WithDescription("Fetch a page and list the URLs it links to, with pagination/login/share junk filtered out. Useful for discovering what to retrieve next."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to extract links from"),
		),
		mcp.WithBoolean("same_host_only",
			mcp.Description("Only return URLs on the same host as the source page (default: false)"),
		),
	)
	s.AddTool(urlsTool, handleExtractURLs(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the justscrape API and returns the
// response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleSearchSources(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		payload := map[string]interface{}{"query": query}
		if count := request.GetInt("count", 0); count > 0 {
			payload["count"] = count
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/search", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search request failed: %v", err)), nil
		}

		var searchResp searchResponse
		if err := json.Unmarshal(respBody, &searchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse search response: %v", err)), nil
		}

		if !searchResp.Success {
			msg := "search failed"
			if searchResp.Error != "" {
				msg = searchResp.Error
			}
			return mcp.NewToolResultError(msg), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Found %d results for %q:\n\n", len(searchResp.Results), searchResp.Query))
		for _, r := range searchResp.Results {
			sb.WriteString(fmt.Sprintf("%d. %s\n   %s\n", r.Position, r.Title, r.URL))
			if r.Snippet != "" {
				sb.WriteString("   " + r.Snippet + "\n")
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleRetrieveSource(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{"url": url}
		if method := request.GetString("method", ""); method != "" {
			payload["method"] = method
		}
		if selector := request.GetString("selector", ""); selector != "" {
			payload["selector"] = selector
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/retrieve", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("retrieve request failed: %v", err)), nil
		}

		var retResp retrieveResponse
		if err := json.Unmarshal(respBody, &retResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse retrieve response: %v", err)), nil
		}

		if retResp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", retResp.Error.Code, retResp.Error.Message)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Title: %s\nSource: %s\n", retResp.Title, retResp.URL))
		if retResp.Classification != nil {
			sb.WriteString(fmt.Sprintf("Status: %s (%s confidence)\n", retResp.Classification.Status, retResp.Classification.Confidence))
			if len(retResp.Classification.Patterns) > 0 {
				sb.WriteString("Detected: " + strings.Join(retResp.Classification.Patterns, ", ") + "\n")
			}
		}
		if retResp.Signals != nil {
			sb.WriteString(fmt.Sprintf("Method: %s, ~%d tokens\n", retResp.Signals.Method, retResp.Signals.TokensEstimate))
		}
		sb.WriteString("\n" + retResp.Content)

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleResearch(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		payload := map[string]interface{}{"query": query}
		if limit := request.GetInt("limit", 0); limit > 0 {
			payload["limit"] = limit
		}
		args := request.GetArguments()
		if allow, ok := args["allow_rendering"]; ok {
			payload["allow_rendering"] = allow
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/research", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("research request failed: %v", err)), nil
		}

		var resResp researchResponse
		if err := json.Unmarshal(respBody, &resResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse research response: %v", err)), nil
		}

		if resResp.SearchError != "" {
			return mcp.NewToolResultError("search failed: " + resResp.SearchError), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Research %q: %d/%d sources usable (rate %.2f)\n\n",
			resResp.Query, resResp.Metrics.Usable, resResp.Metrics.Total, resResp.Metrics.UsableRate))

		for _, src := range resResp.Sources {
			if src.DuplicateOf > 0 {
				sb.WriteString(fmt.Sprintf("--- [%d] %s (%s) — duplicate of source %d ---\n\n",
					src.Position, src.Title, src.URL, src.DuplicateOf))
				continue
			}
			sb.WriteString(fmt.Sprintf("--- [%d] %s (%s, via %s) ---\n%s\n\n",
				src.Position, src.Title, src.URL, src.Method, src.Content))
		}

		for _, f := range resResp.Failures {
			reason := f.Status
			if len(f.Reason) > 0 {
				reason += ": " + strings.Join(f.Reason, ", ")
			}
			sb.WriteString(fmt.Sprintf("--- [%d] FAILED %s (%s) ---\n\n", f.Position, f.URL, reason))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleExtractURLs(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{
			"url":            url,
			"same_host_only": request.GetBool("same_host_only", false),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/urls", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("urls request failed: %v", err)), nil
		}

		var uResp urlsResponse
		if err := json.Unmarshal(respBody, &uResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse urls response: %v", err)), nil
		}

		if uResp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", uResp.Error.Code, uResp.Error.Message)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Found %d URLs on %s (%d junk links filtered):\n\n",
			uResp.Count, uResp.SourceURL, uResp.JunkFiltered))
		for _, u := range uResp.URLs {
			sb.WriteString(u + "\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
