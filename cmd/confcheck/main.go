// Command confcheck runs browser feature files against the publisher and
// viewer applications.
//
// Usage:
//
//	confcheck run features/
//	confcheck run --driver chromedp --workers 4 --tags streaming features/
//	confcheck check features/
//	confcheck steps
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
