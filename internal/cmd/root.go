package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for streamfmt
func NewRootCommand() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "streamfmt [file...]",
		Short: "Render an agent session JSON stream as a readable transcript",
		Long: `streamfmt reads newline-delimited JSON records describing an agent session
(tool calls, tool results, assistant messages and the final result) and
prints them as a human-readable transcript.

With no file arguments, or with "-", records are read from standard input.
A directory argument stands for the .jsonl and .ndjson files it contains.
Files ending in .gz, .zst or .br are decompressed. Lines that are not JSON,
or records of an unknown shape, are skipped silently.

Examples:
  claude -p "fix the tests" --output-format stream-json --verbose | streamfmt
  streamfmt session.jsonl.gz
  streamfmt -r ~/.claude/projects/myproject
  streamfmt --follow --output transcript.txt session.jsonl`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args, &flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.color, "color", "", "Color output: auto, always or never (default from config, else auto)")
	f.StringVarP(&flags.output, "output", "o", "", "Append the transcript to this file instead of stdout")
	f.BoolVarP(&flags.follow, "follow", "f", false, "Keep reading the input file as it grows (single file only)")
	f.StringVar(&flags.configPath, "config", "", "Config file path (default $STREAMFMT_HOME/config.yaml)")
	f.StringVar(&flags.logLevel, "log-level", "", "Diagnostic log level: trace, debug, info, warn, error")
	f.StringVar(&flags.logFile, "log-file", "", "Write diagnostics to this file instead of stderr")
	f.BoolVar(&flags.stats, "stats", false, "Print a processing summary to stderr when done")
	f.BoolVarP(&flags.recursive, "recursive", "r", false, "Descend into subdirectories of directory arguments")
	f.IntVar(&flags.maxDepth, "max-depth", 0, "With --recursive, limit directory depth (0 = unlimited, 1 = top level only)")
	f.BoolVar(&flags.waitLock, "wait-lock", false, "Wait for another run to release --output instead of failing")

	return cmd
}
