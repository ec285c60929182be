// Package searcher ranks indexed files against queries by cosine
// similarity over their embeddings, and caches ranked results per project
// root. Cache entries are validated against the live index fingerprint, so
// any file change forces a fresh ranking.
package searcher
