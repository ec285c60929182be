// Package mcp exposes the context broker over the Model Context Protocol:
// search and persistence tools, the codebase://auto-context resource, and
// the auto-search prompt, served over stdio. Stdout carries only the
// protocol stream; all logging goes to stderr.
package mcp
