package main

import (
	"fmt"
	"github.com/fzft/go-mock-epoll/cmd"
	"os"
)

func main() {
	if err := cmd.NewRootCommand(Version()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
