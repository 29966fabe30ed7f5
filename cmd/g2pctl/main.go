// Command g2pctl checks curation submissions offline and mints API tokens.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes.
const (
	exitSuccess = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var invalid invalidError
		if errors.As(err, &invalid) {
			return exitInvalid
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitError
	}
	return exitSuccess
}
