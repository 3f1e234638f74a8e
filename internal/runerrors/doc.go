// Package runerrors holds the error kinds that decide whether a run aborts.
package runerrors
