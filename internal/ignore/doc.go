// Package ignore compiles gitignore-style rules into a predicate over
// project-relative paths.
//
// Rules follow the familiar dialect: # comments, ! negation, trailing /
// for directory-only rules, leading / to anchor a pattern to the project
// root, and glob wildcards including ** across path separators. Rules are
// evaluated in order and the last match wins, so a later negation can
// re-include a path excluded by an earlier rule.
//
// A fixed built-in exclusion set (node_modules, .git, dist, and similar)
// is always applied on top of file-supplied rules and cannot be negated.
package ignore
