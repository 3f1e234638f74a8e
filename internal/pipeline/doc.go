// Package pipeline fans repository tasks out over a bounded worker pool, reads through the cache before
// fetching, analyzes each file, and aggregates the outcomes into a sorted report.
package pipeline
