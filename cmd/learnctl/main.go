// Command learnctl inspects and edits the course counter file and decodes
// claim tokens. It works offline against the same file the server uses.
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
