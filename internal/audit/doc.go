// Package audit wires repository discovery, cached file retrieval, and report rendering
// into the ygg audit command.
//
// CommandBuilder merges flags over configuration and hands a CommandOptions value to
// Service, which resolves the access token only when the run needs the network.
package audit
