package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/embeddings"
)

var (
	searchToolName    = "search_passages"
	searchDescription = "Search a conversation's uploaded documents using semantic search. " +
		"Returns the most relevant passages for the query text, annotated with the document each came from."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"the conversation whose documents to search"`
	Query          string `json:"query" jsonschema:"the search query text to find relevant passages"`
	TopK           int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Document string  `json:"document"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	// Default topK if not specified
	topK := input.TopK
	if topK <= 0 {
		topK = 5
	}

	logger.Debug("MCP search request",
		zap.String("conversation_id", input.ConversationID),
		zap.String("query", input.Query),
		zap.Int("topK", topK),
	)

	conv, err := s.config.Store.Get(input.ConversationID)
	if err != nil {
		return toolError(fmt.Sprintf("Unknown conversation: %v", err)), SearchOutput{}, nil
	}

	if conv.DocumentCount() == 0 {
		output := SearchOutput{Query: input.Query, Results: []SearchResult{}}
		return toolSuccess(output, logger), output, nil
	}

	// Fingerprint the query
	fp, err := embeddings.Fingerprint(ctx, s.config.Embedder, input.Query)
	if err != nil {
		logger.Error("failed to fingerprint query", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to fingerprint query: %v", err)), SearchOutput{}, nil
	}

	// Rank against the conversation's passages
	matches, err := conv.Index().Rank(ctx, fp, topK)
	if err != nil {
		logger.Error("failed to rank query", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to rank query: %v", err)), SearchOutput{}, nil
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			Document: m.DocName,
			Score:    m.Score,
			Text:     m.Text,
		})
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: results,
		Count:   len(results),
	}

	return toolSuccess(output, logger), output, nil
}

// toolSuccess wraps structured output for the MCP result.
// Per MCP spec: tools returning structured content should also return
// serialized JSON in a TextContent block for backwards compatibility.
func toolSuccess(output SearchOutput, logger *zap.Logger) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
