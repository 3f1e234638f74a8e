// Package repository defines the identity types shared by discovery, caching,
// fetching, and reporting: Reference for an owner/name pair compared without
// regard to case, FetchKey for a file inside a repository, and Set for
// order-preserving deduplication.
package repository
