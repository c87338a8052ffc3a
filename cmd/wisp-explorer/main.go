// wisp-explorer resolves social handles to their hosting endpoints and
// serves the static sites published there, with blob caching and markup
// rewriting to keep navigation under a reserved path prefix.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
