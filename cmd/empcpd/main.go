// empcpd - Empirical compound assembly for metabolomics feature tables
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/empcpd/cmd/empcpd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
