// Package main is the entry point for the iovcalib application
package main

import "github.com/ethpandaops/iovcalib/cmd"

func main() {
	cmd.Execute()
}
