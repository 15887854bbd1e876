// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command mvctl drives an mvgend server from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return 0
	}

	cmds := map[string]func(context.Context, []string, io.Writer, io.Writer) int{
		"generate":     runGenerate,
		"storyboard":   runStoryboard,
		"protagonists": runProtagonists,
		"render":       runRender,
		"cancel":       runCancel,
		"run":          runAll,
	}
	if args[0] == "version" {
		fmt.Fprintln(stdout, version)
		return 0
	}
	cmd, ok := cmds[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
	return cmd(ctx, args[1:], stdout, stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mvctl generate     -lyrics-file song.txt [-scenes 12]")
	fmt.Fprintln(w, "  mvctl storyboard   -session ID")
	fmt.Fprintln(w, "  mvctl protagonists -session ID [-out dir]")
	fmt.Fprintln(w, "  mvctl render       -session ID [-reference URL] [-aspect 16:9] [-out dir]")
	fmt.Fprintln(w, "  mvctl cancel       -job ID")
	fmt.Fprintln(w, "  mvctl run          -lyrics-file song.txt [-pick 1] [-aspect 16:9] -out dir")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Every command accepts -server (default $MVGEN_SERVER or http://localhost:8080) and -v.")
}
