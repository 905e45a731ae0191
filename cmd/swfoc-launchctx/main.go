package main

import (
	"fmt"
	"os"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/launchctxcli/commands"
)

const (
	errCommand = 1
	errSetup   = 2
)

func main() {
	root, err := commands.NewRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errSetup)
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errCommand)
	}
}
