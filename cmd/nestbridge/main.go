package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

const usage = `Usage: nestbridge <command> [flags] [args]

Commands:
  get        Print the status of nodes or connections
  set        Set parameters on nodes or connections
  call       Call a status tool with JSON arguments (locally or on an MCP server)
  serve-mcp  Serve the status tools over MCP on stdio
  serve-ws   Serve the interpreter backend over websocket
  serve-sli  Serve the interpreter backend with the line protocol on stdio

Handles are written as node ids ("1,2,5-7") or connections ("c:1-2,3-4:0:0:1").
Run "nestbridge <command> -h" for the flags of a command.
`

type command struct {
	usage string
	run   func(ctx context.Context, fs *flag.FlagSet, common *commonFlags, args []string) error
}

var commands = map[string]command{
	"get":       {"get [flags] <handles>", runGet},
	"set":       {"set [flags] <handles> <params-yaml> | <handles> <name> <value-yaml>", runSet},
	"call":      {"call [flags] <tool> <json-arguments>", runCall},
	"serve-mcp": {"serve-mcp [flags]", runServeMCP},
	"serve-ws":  {"serve-ws [flags]", runServeWS},
	"serve-sli": {"serve-sli [flags]", runServeSLI},
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	name := os.Args[1]
	if name == "-h" || name == "--help" || name == "help" {
		fmt.Fprint(os.Stdout, usage)
		return
	}
	if name == "version" {
		fmt.Println(version)
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nestbridge %s\n\nFlags:\n", cmd.usage)
		fs.PrintDefaults()
	}
	common := registerCommonFlags(fs)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.run(ctx, fs, common, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
