package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	optoutcmd "github.com/optout-tools/optout/pkg/optout/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := optoutcmd.DefaultConfig()
	cfg.Context = ctx
	root := optoutcmd.NewRootCommand(cfg)
	root.SetArgs(args)
	err := root.Execute()
	if optoutcmd.ShouldPrint(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return optoutcmd.ExitCode(err)
}
