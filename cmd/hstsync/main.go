// Package main provides the entry point for the hstsync CLI tool.
package main

import (
	"github.com/agentstation/hstsync/cmd/hstsync/cmd"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
