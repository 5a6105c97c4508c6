// Package main implements the rcutest CLI, a thin driver around package
// rcutest for ad hoc stress runs from a shell instead of `go test`.
//
// Usage:
//
//	rcutest run -enqueuers 4 -dequeuers 4 -dur 10s
//	rcutest version
//	rcutest help
//
// Adapted from the teacher's cmd/racedetector dispatch shape (main.go's
// command switch over os.Args[1]); the build/instrument/run-under-race
// machinery that CLI wrapped has no analogue here, since rcutest drives a
// library stress test rather than instrumenting arbitrary source files.
package main

import (
	"fmt"
	"os"

	"github.com/kolkov/go-urcu/rcutest"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("rcutest version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runCommand(args []string) {
	cfg, err := rcutest.ParseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	result, err := rcutest.Run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(result.String())
}

func printUsage() {
	fmt.Print(`rcutest - RCU-protected lock-free queue stress harness

USAGE:
    rcutest <command> [arguments]

COMMANDS:
    run        Drive enqueuer/dequeuer goroutines against the RCU queue
    version    Show version information
    help       Show this help message

EXAMPLES:
    rcutest run -enqueuers 4 -dequeuers 4 -dur 10s
    rcutest run -wdelay 100 -rdur 50 -tag nightly/soak -v
`)
}
