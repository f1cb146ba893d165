// Command mediactl resolves asset locators from the command line and inspects a running media API.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
