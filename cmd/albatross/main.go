package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "worker":
		err = runWorker()
	case "admin":
		err = runAdmin(args)
	case "help", "--help", "-h":
		printHelp()
	default:
		printHelp()
		err = fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: albatross <command>

Commands:
  serve    Run the API server (default)
  worker   Run the projection worker
  admin    Administrative commands (tenants, users, api keys)
  help     Show this help message
`)
}
