package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// AutoContextURI identifies the always-available project context resource.
const AutoContextURI = "codebase://auto-context"

// autoContextTopK limits the resource payload; it rides along on every
// request, so it stays smaller than an explicit search.
const autoContextTopK = 3

// autoSearchInstruction is the auto-search prompt body.
const autoSearchInstruction = "IMPORTANT: Before answering ANY user request about code, you MUST first call the `search_codebase` tool with:\n" +
	"- query: Extract the main topic/keywords from the user's request\n" +
	"- project_root: Optional - will be auto-detected from current directory\n\n" +
	"Alternatively, use `auto_search` tool for initial project exploration (no arguments needed).\n\n" +
	"This ensures you have relevant codebase context before responding. Never skip this step."

func (s *Server) registerResources() {
	resource := mcp.Resource{
		URI:         AutoContextURI,
		Name:        "Auto Context",
		Description: "Relevant files for understanding the current project, selected with the default query",
		MIMEType:    "text/plain",
	}
	s.mcp.AddResource(resource, s.handleAutoContextResource)
}

// handleAutoContextResource serves codebase://auto-context. Errors yield
// empty content rather than a protocol failure, so a broken index never
// blocks the client.
func (s *Server) handleAutoContextResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text := ""

	root := s.resolver.Resolve("")
	if resp, err := s.searcher.Search(ctx, root, s.cfg.DefaultQuery, autoContextTopK); err == nil {
		var b strings.Builder
		fmt.Fprintf(&b, "Auto-Context: %s\n\n", resp.Project)
		writeTokenReport(&b, resp.Stats)
		writeFileSections(&b, resp.Results)
		text = b.String()
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      AutoContextURI,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

func (s *Server) registerPrompts() {
	prompt := mcp.Prompt{
		Name:        "auto-search",
		Description: "Instructs the assistant to search the codebase before answering questions about code",
	}
	s.mcp.AddPrompt(prompt, s.handleAutoSearchPrompt)
}

func (s *Server) handleAutoSearchPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Search the codebase before answering",
		Messages: []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(autoSearchInstruction)),
		},
	}, nil
}
