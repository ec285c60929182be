package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchCodebaseTool returns the tool definition for search_codebase
func searchCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_codebase",
		Description: "Search the codebase using semantic similarity. Finds relevant files by matching the meaning of the query against file contents.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language search query, e.g. 'authentication middleware' or 'database connection setup'",
				},
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Project root path (auto-detected if not provided)",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of files to return",
					"default":     5,
					"minimum":     1,
				},
			},
			Required: []string{"query"},
		},
	}
}

// autoSearchTool returns the tool definition for auto_search
func autoSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "auto_search",
		Description: "Search the codebase with the configured default query to gather initial project context: entry points, configuration, and setup.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Project root path (auto-detected if not provided)",
				},
			},
		},
	}
}

// saveSearchResultsTool returns the tool definition for save_search_results
func saveSearchResultsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_search_results",
		Description: "Search the codebase and persist the results as a JSON document for later reference. Placement follows the configured storage mode.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query describing what to capture",
				},
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Name for the JSON file, e.g. 'auth-middleware.json'",
				},
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Project root path (auto-detected if not provided)",
				},
				"subdir": map[string]interface{}{
					"type":        "string",
					"description": "Optional subdirectory, e.g. 'api' or 'config'",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to include",
					"default":     5,
					"minimum":     1,
				},
			},
			Required: []string{"query", "filename"},
		},
	}
}

// listSavedResultsTool returns the tool definition for list_saved_results
func listSavedResultsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_saved_results",
		Description: "List saved search result documents for a project, tagged with their storage location.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the project",
				},
				"subdir": map[string]interface{}{
					"type":        "string",
					"description": "Optional subdirectory to list",
				},
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Needed for in-project storage modes",
				},
			},
			Required: []string{"project_name"},
		},
	}
}

// loadSavedResultsTool returns the tool definition for load_saved_results
func loadSavedResultsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "load_saved_results",
		Description: "Load a previously saved search result document. In 'both' mode the in-project copy wins over the global one.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the project",
				},
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Name of the saved JSON file",
				},
				"subdir": map[string]interface{}{
					"type":        "string",
					"description": "Optional subdirectory",
				},
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Needed for in-project storage modes",
				},
			},
			Required: []string{"project_name", "filename"},
		},
	}
}

// getStorageConfigTool returns the tool definition for get_storage_config
func getStorageConfigTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_storage_config",
		Description: "Show the current storage configuration: mode, base directory, and folder layout.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
		},
	}
}
