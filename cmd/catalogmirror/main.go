package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		setupLog.Error(err, "command failed")
		os.Exit(1)
	}
}
