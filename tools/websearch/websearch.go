// Package websearch provides the web_search tool backed by Tavily.
package websearch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/tools", "websearch")

// ToolName is the name of the tool
const ToolName = "web_search"

// APIKeyEnvVarName is the environment variable with the Tavily API key
const APIKeyEnvVarName = "TAVILY_API_KEY" //nolint:gosec

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"query" yaml:"query" jsonschema:"description=The query to search web."`
}

// SearchResult represents the structure for a search response
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"results"`
	Answer  string                      `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// Searcher performs web searches
type Searcher struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New returns a new searcher
func New(apiKey string) (*Searcher, error) {
	if apiKey == "" {
		return nil, errors.Errorf("%s is not set", APIKeyEnvVarName)
	}
	return &Searcher{
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}, nil
}

// WithBaseURL overrides the API endpoint
func (s *Searcher) WithBaseURL(baseURL string) *Searcher {
	s.baseURL = baseURL
	return s
}

// WithHTTPClient sets the HTTP client
func (s *Searcher) WithHTTPClient(client *http.Client) *Searcher {
	s.httpClient = client
	return s
}

// Tool returns the web_search tool
func (s *Searcher) Tool() registry.ITool {
	return registry.MustTyped[SearchRequest, *SearchResult](ToolName,
		"Searches the web and returns the results with an aggregated answer.",
		s.Search)
}

// Search performs the search
func (s *Searcher) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("invalid request: empty query")
	}

	client := tavilygo.NewClient(s.apiKey)
	if s.baseURL != "" {
		client.BaseURL = s.baseURL
	}
	if s.httpClient != nil {
		client.HTTPClient = s.httpClient
	}

	searchReq := tavilyModels.SearchRequest{
		Query:         req.Query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
	}

	searchResp, err := tavilygo.Search(client, searchReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform search")
	}

	logger.ContextKV(ctx, xlog.DEBUG, "tool", ToolName, "results", len(searchResp.Results))
	return &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}, nil
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}
