// Command conference serves the publisher and viewer applications and
// relays the published media to viewers.
//
// Usage:
//
//	conference serve --addr :8080
//	conference serve --addr :8080 --udp-port-min 50000 --udp-port-max 50100 --public-ip 203.0.113.7
//
// Open http://localhost:8080/publisher?streamName=demo in one tab and
// http://localhost:8080/viewer?streamName=demo in another.
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
