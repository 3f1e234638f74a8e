// Package discovery resolves the repositories a run targets, from a static JSON list or a code search.
package discovery
