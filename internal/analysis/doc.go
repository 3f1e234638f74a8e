// Package analysis validates the run mode and turns fetched file content into per-repository outcomes.
//
// Package-audit mode reads npm package-lock.json (lockfile versions 1 through 3) and pnpm-lock.yaml files and
// reports every resolved version of one package. String-search mode looks for a literal needle.
package analysis
