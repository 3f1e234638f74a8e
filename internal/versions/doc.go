// Package versions orders semver-like version strings for audit reports.
package versions
