// Command notifyctl talks to a running editorial-notify server: it fires
// events, lists scheduled notifications and manages channel preferences.
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
