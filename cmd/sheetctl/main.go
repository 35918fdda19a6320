// Command sheetctl is a line-oriented shell for driving a sheetlang Sheet.
package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr/funcr"

	"github.com/kalexmills/sheetlang/internal"
)

func main() {
	logger := funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, prefix, args)
	}, funcr.Options{Verbosity: verbosity()})

	sheet := internal.NewSheet().WithLogger(logger)

	if err := Run(sheet, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "sheetctl:", err)
		os.Exit(1)
	}
}

func verbosity() int {
	if os.Getenv("SHEETCTL_VERBOSE") != "" {
		return 1
	}
	return 0
}
