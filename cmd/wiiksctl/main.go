// Command wiiksctl lays out, renders and exports weekly schedules, either
// from a local schedule file or against a running schedule API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
