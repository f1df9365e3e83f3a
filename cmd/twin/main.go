package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, DeepError(err.Error()))
		os.Exit(exitCode(err))
	}
}
