// Package types defines the structured data model shared across the context
// broker: indexed file records, search results with token statistics, saved
// result documents, and the error taxonomy used by every component.
package types
