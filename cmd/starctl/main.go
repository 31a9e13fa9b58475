// Command starctl imports star-rating snapshots into a SQLite database and
// computes stars, recommendations and batch comparisons from the terminal.
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
