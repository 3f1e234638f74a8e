// Package ui provides helpers for formatting human-readable console output.
//
// The helpers translate repository task events into concise messages so that
// progress stays readable on the console while detailed telemetry continues
// to flow through structured loggers.
package ui
