package mcp

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/InSelfControll/context-broker-mcp/internal/project"
	"github.com/InSelfControll/context-broker-mcp/internal/searcher"
	"github.com/InSelfControll/context-broker-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
)

// handleSearchCodebase handles the search_codebase tool invocation
func (s *Server) handleSearchCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments")
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required")
	}
	topK := getIntDefault(args, "top_k", s.cfg.TopK)

	root := s.resolver.Resolve(getStringDefault(args, "project_root", ""))
	s.ensureWatcher(root)

	resp, err := s.searcher.Search(ctx, root, query, topK)
	if err != nil {
		log.Printf("search error: %v", err)
		return mcp.NewToolResultText(fmt.Sprintf("Error: %v", err)), nil
	}

	return mcp.NewToolResultText(formatSearchResponse(resp)), nil
}

// handleAutoSearch handles the auto_search tool invocation
func (s *Server) handleAutoSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := s.resolver.Resolve(argString(request, "project_root"))
	s.ensureWatcher(root)

	resp, err := s.searcher.Search(ctx, root, s.cfg.DefaultQuery, s.cfg.TopK)
	if err != nil {
		log.Printf("auto-search error: %v", err)
		return mcp.NewToolResultText(fmt.Sprintf("Error: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Auto-Context for Project: %s\n", resp.Project)
	fmt.Fprintf(&b, "Found %d relevant files\n\n", len(resp.Results))
	writeTokenReport(&b, resp.Stats)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	writeFileSections(&b, resp.Results)

	return mcp.NewToolResultText(b.String()), nil
}

// handleSaveSearchResults handles the save_search_results tool invocation
func (s *Server) handleSaveSearchResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments")
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required")
	}
	filename, ok := args["filename"].(string)
	if !ok || filename == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "filename parameter is required")
	}

	topK := getIntDefault(args, "top_k", s.cfg.TopK)
	subdir := getStringDefault(args, "subdir", "")
	root := s.resolver.Resolve(getStringDefault(args, "project_root", ""))
	projectName := project.Name(root)

	resp, err := s.searcher.Search(ctx, root, query, topK)
	if err != nil {
		log.Printf("save error: %v", err)
		return mcp.NewToolResultText(fmt.Sprintf("Error saving results: %v", err)), nil
	}

	doc := &types.SavedResultDocument{
		Project:     projectName,
		ProjectRoot: root,
		Query:       resp.Query,
		StorageMode: s.router.Mode().String(),
		TopK:        topK,
		Timestamp:   time.Now().UTC(),
		FileCount:   len(resp.Results),
		Files:       make([]types.SavedFile, len(resp.Results)),
		Statistics:  resp.Stats,
	}
	for i, res := range resp.Results {
		doc.Files[i] = types.SavedFile{Path: res.Path, Content: res.Content}
	}

	path, err := s.router.Save(projectName, root, subdir, filename, doc)
	if err != nil {
		log.Printf("save error: %v", err)
		return mcp.NewToolResultText(fmt.Sprintf("Error saving results: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Saved %d files to: %s", len(resp.Results), path)), nil
}

// handleListSavedResults handles the list_saved_results tool invocation
func (s *Server) handleListSavedResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments")
	}

	projectName, ok := args["project_name"].(string)
	if !ok || projectName == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "project_name parameter is required")
	}
	subdir := getStringDefault(args, "subdir", "")
	projectRoot := getStringDefault(args, "project_root", "")

	entries, err := s.router.List(projectName, projectRoot, subdir)
	if err != nil {
		log.Printf("list error: %v", err)
		return mcp.NewToolResultText(fmt.Sprintf("Error listing results: %v", err)), nil
	}

	if len(entries) == 0 {
		where := ""
		if subdir != "" {
			where = fmt.Sprintf(" in '%s'", subdir)
		}
		return mcp.NewToolResultText(fmt.Sprintf("No saved results found for project '%s'%s.", projectName, where)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Saved Results for: %s\n", projectName)
	fmt.Fprintf(&b, "Storage Mode: %s\n\n", s.router.Mode())
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s (%s)\n", e.Name, e.Source)
	}
	fmt.Fprintf(&b, "\nTotal: %d files", len(entries))

	return mcp.NewToolResultText(b.String()), nil
}

// handleLoadSavedResults handles the load_saved_results tool invocation
func (s *Server) handleLoadSavedResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments")
	}

	projectName, ok := args["project_name"].(string)
	if !ok || projectName == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "project_name parameter is required")
	}
	filename, ok := args["filename"].(string)
	if !ok || filename == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "filename parameter is required")
	}
	subdir := getStringDefault(args, "subdir", "")
	projectRoot := getStringDefault(args, "project_root", "")

	doc, _, err := s.router.Load(projectName, projectRoot, subdir, filename)
	if err != nil {
		log.Printf("load error: %v", err)
		return mcp.NewToolResultText(fmt.Sprintf("Error loading results: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("Saved Search Results\n")
	fmt.Fprintf(&b, "Project: %s\n", doc.Project)
	fmt.Fprintf(&b, "Query: %s\n", doc.Query)
	fmt.Fprintf(&b, "Storage Mode: %s\n", doc.StorageMode)
	fmt.Fprintf(&b, "Files: %d\n\n", doc.FileCount)

	b.WriteString("Token Efficiency Report (at time of saving):\n")
	fmt.Fprintf(&b, "   Total Project Tokens: %d\n", doc.Statistics.TotalTokens)
	fmt.Fprintf(&b, "   Context Sent: %d\n", doc.Statistics.ContextTokens)
	fmt.Fprintf(&b, "   Tokens Saved: %d (%.1f%%)\n\n", doc.Statistics.SavedTokens, doc.Statistics.SavedPercent)

	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, f := range doc.Files {
		fmt.Fprintf(&b, "### FILE: %s\n%s\n\n", f.Path, f.Content)
	}

	return mcp.NewToolResultText(b.String()), nil
}

// handleGetStorageConfig handles the get_storage_config tool invocation
func (s *Server) handleGetStorageConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := s.router.ConfigInfo()
	modes := info["modes"].(map[string]string)

	var b strings.Builder
	b.WriteString("Context Broker Storage Configuration\n\n")
	fmt.Fprintf(&b, "Current Mode: %s\n\n", info["mode"])
	b.WriteString("Available Modes:\n")
	for _, mode := range []string{"global", "in-project", "both"} {
		marker := ""
		if mode == info["mode"] {
			marker = " (active)"
		}
		fmt.Fprintf(&b, "  '%s' - %s%s\n", mode, modes[mode], marker)
	}
	fmt.Fprintf(&b, "\nBase Directory (global): %s\n", info["base_dir"])
	fmt.Fprintf(&b, "In-Project Folder Name: %s\n", info["in_project_folder"])

	return mcp.NewToolResultText(b.String()), nil
}

// formatSearchResponse renders a search response the way clients expect:
// header, token report, then full file sections.
func formatSearchResponse(resp *searcher.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search Results for: '%s'\n", resp.Query)
	fmt.Fprintf(&b, "Project: %s\n", resp.Project)
	fmt.Fprintf(&b, "Found %d relevant files (out of %d total)\n\n", len(resp.Results), resp.TotalFiles)
	writeTokenReport(&b, resp.Stats)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	writeFileSections(&b, resp.Results)
	return b.String()
}

func writeTokenReport(b *strings.Builder, stats types.TokenStats) {
	b.WriteString("Token Efficiency Report:\n")
	fmt.Fprintf(b, "   Total Project Tokens: %d\n", stats.TotalTokens)
	fmt.Fprintf(b, "   Context Sent: %d\n", stats.ContextTokens)
	fmt.Fprintf(b, "   Tokens Saved: %d (%.1f%%)\n\n", stats.SavedTokens, stats.SavedPercent)
}

func writeFileSections(b *strings.Builder, results []types.SearchResult) {
	for _, res := range results {
		fmt.Fprintf(b, "### FILE: %s\n%s\n\n", res.Path, res.Content)
	}
}

// newMCPError wraps a protocol-level parameter error
func newMCPError(code int, message string) error {
	return &MCPError{Code: code, Message: message}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// argString extracts a string argument, tolerating absent argument maps.
func argString(request mcp.CallToolRequest, key string) string {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return ""
	}
	return getStringDefault(args, key, "")
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
