// Command taskflow runs the demo task graphs with configurable middleware, caching,
// events, metrics and tracing.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
