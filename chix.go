// Package chix holds shared metadata for the chix MCP server.
package chix

// Version is the chix release version, set at build time via -ldflags.
var Version = "0.3.0-dev"
