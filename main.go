// Package main is the entry point for the crmeta CLI, which builds ranked
// Clash Royale deck meta snapshots from the top players' battle logs.
package main

import "github.com/pable/go-cr-meta/cmd"

func main() {
	cmd.Execute()
}
