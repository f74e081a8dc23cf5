package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"runtime/trace"
	"strings"

	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/pkg/cli"
)

const esmlinkVersion = "0.1.0"

const helpText = `
Usage:
  esmlink [options] [entry points]

Options:
  --outdir=...              The output directory (required for more than one chunk)
  --sourcemap               Emit a source map next to each chunk
  --tree-shaking=false      Keep every statement of every module
  --splitting               Put dynamically-imported modules in their own chunks
  --shared=...              Placement of shared modules (hoist or duplicate)
  --external=M              Leave imports of module M in the output
  --metafile=...            Write metadata about the build to a JSON file
  --config=...              Read options from a YAML file (flags override it)
  --watch                   Rebuild whenever an input file changes

Advanced options:
  --version                 Print the current version and exit (` + esmlinkVersion + `)
  --color=...               Force use of color terminal escapes (true or false)
  --log-level=...           Disable logging (info, warning, error, silent)
  --concurrency=...         Size of the parse and print worker pools
  --timing                  Log how long each phase of the build took
  --trace=...               Write a Go execution trace to a file
  --cpuprofile=...          Write a Go CPU profile to a file

Examples:
  # Produces dist/app.js and dist/app.js.map
  esmlink src/app.js --outdir=dist --sourcemap

  # Two entry points that share code, with lazy-loaded routes split out
  esmlink src/home.js src/admin.js --outdir=dist --splitting

  # Output directories can also be afs URLs
  esmlink src/app.js --outdir=file:///srv/www/assets
`

func main() {
	osArgs := os.Args[1:]
	traceFile := ""
	cpuprofileFile := ""

	// Do an initial scan over the argument list
	argsEnd := 0
	for _, arg := range osArgs {
		switch {
		// Show help if a common help flag is provided
		case arg == "-h", arg == "-help", arg == "--help", arg == "/?":
			fmt.Fprintf(os.Stderr, "%s\n", helpText)
			os.Exit(0)

		// Special-case the version flag here
		case arg == "--version":
			fmt.Fprintf(os.Stderr, "%s\n", esmlinkVersion)
			os.Exit(0)

		case strings.HasPrefix(arg, "--trace="):
			traceFile = arg[len("--trace="):]

		case strings.HasPrefix(arg, "--cpuprofile="):
			cpuprofileFile = arg[len("--cpuprofile="):]

		default:
			// Strip any arguments that were handled above
			osArgs[argsEnd] = arg
			argsEnd++
		}
	}
	osArgs = osArgs[:argsEnd]

	// Print help text when there are no arguments
	if len(osArgs) == 0 && logger.GetTerminalInfo(os.Stdin).IsTTY {
		fmt.Fprintf(os.Stderr, "%s\n", helpText)
		os.Exit(0)
	}

	// Capture the defer statements below so the profiles are flushed before
	// the process exits
	exitCode := 1
	func() {
		// To view a trace, use "go tool trace [file]"
		if traceFile != "" {
			f, err := os.Create(traceFile)
			if err != nil {
				logger.PrintErrorToStderr(osArgs, fmt.Sprintf(
					"Failed to create trace file: %s", err.Error()))
				return
			}
			defer f.Close()
			trace.Start(f)
			defer trace.Stop()
		}

		if cpuprofileFile != "" {
			f, err := os.Create(cpuprofileFile)
			if err != nil {
				logger.PrintErrorToStderr(osArgs, fmt.Sprintf(
					"Failed to create cpuprofile file: %s", err.Error()))
				return
			}
			defer f.Close()
			pprof.StartCPUProfile(f)
			defer pprof.StopCPUProfile()
		}

		exitCode = cli.Run(osArgs)
	}()

	os.Exit(exitCode)
}
