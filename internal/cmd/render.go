package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/harrison/streamfmt/internal/config"
	"github.com/harrison/streamfmt/internal/filelock"
	"github.com/harrison/streamfmt/internal/follow"
	"github.com/harrison/streamfmt/internal/logger"
	"github.com/harrison/streamfmt/internal/source"
	"github.com/harrison/streamfmt/internal/transcript"
	"github.com/spf13/cobra"
)

// renderFlags holds the root command's flag values.
type renderFlags struct {
	color      string
	output     string
	follow     bool
	configPath string
	logLevel   string
	logFile    string
	stats      bool
	recursive  bool
	maxDepth   int
	waitLock   bool
}

// runRender wires config, logging, input and output around the transcript
// processor.
func runRender(cmd *cobra.Command, args []string, flags *renderFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	if flags.follow {
		if err := checkFollowArgs(args); err != nil {
			return err
		}
	}
	if flags.maxDepth < 0 {
		return errors.New("--max-depth must not be negative")
	}

	log, closeLog, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	out := cmd.OutOrStdout()
	if flags.output != "" {
		open := filelock.OpenAppend
		if flags.waitLock {
			log.Debug("waiting for output lock", "path", flags.output)
			open = filelock.OpenAppendWait
		}
		lf, err := open(flags.output)
		if err != nil {
			return err
		}
		defer lf.Close()
		out = lf
	}

	ctx := cmd.Context()
	if flags.follow {
		// Interrupting a follow is the normal way to end it.
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	if !flags.follow {
		args, err = expandArgs(args, source.ScanOptions{Recursive: flags.recursive, MaxDepth: flags.maxDepth}, log)
		if err != nil {
			return err
		}
	}

	in, err := openInput(ctx, cmd, args, flags.follow)
	if err != nil {
		return err
	}
	defer in.Close()

	opts := transcript.DefaultOptions()
	opts.ColorOutput = useColor(cfg.Color, out)

	log.Debug("rendering transcript", "inputs", len(args), "follow", flags.follow, "color", opts.ColorOutput)

	proc := transcript.NewProcessor(opts, log)
	stats, err := proc.Process(ctx, in, out)
	log.Debug("done", "stats", stats.String())
	if flags.stats {
		fmt.Fprintf(cmd.ErrOrStderr(), "streamfmt: %s\n", stats)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, flags *renderFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.LoadConfig(flags.configPath)
	} else {
		cfg, err = config.LoadConfigFromHome()
	}
	if err != nil {
		return nil, err
	}

	var colorFlag, levelFlag, logFileFlag *string
	if cmd.Flags().Changed("color") {
		colorFlag = &flags.color
	}
	if cmd.Flags().Changed("log-level") {
		levelFlag = &flags.logLevel
	}
	if cmd.Flags().Changed("log-file") {
		logFileFlag = &flags.logFile
	}
	cfg.MergeWithFlags(colorFlag, levelFlag, logFileFlag)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func checkFollowArgs(args []string) error {
	if len(args) != 1 || args[0] == source.Stdin {
		return errors.New("--follow requires exactly one input file")
	}
	if c := source.Detect(args[0]); c != source.None {
		return fmt.Errorf("--follow cannot be used with %s compressed input", c)
	}
	if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
		return fmt.Errorf("--follow requires a file, %s is a directory", args[0])
	}
	return nil
}

// expandArgs replaces directory arguments with the session logs they hold.
func expandArgs(args []string, opts source.ScanOptions, log *slog.Logger) ([]string, error) {
	if len(args) == 0 {
		return args, nil
	}
	res, err := source.ExpandArgs(args, opts)
	if err != nil {
		return nil, err
	}
	for _, e := range res.Errors {
		log.Warn("skipping unreadable path", "error", e)
	}
	if len(res.Files) == 0 {
		return nil, errors.New("no session files found in the given directories")
	}
	log.Debug("expanded inputs", "args", len(args), "files", len(res.Files))
	return res.Files, nil
}

// newLogger returns the diagnostic logger and a function releasing its sink.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func(), error) {
	runID := logger.NewRunID()
	if cfg.LogFile == "" {
		return logger.New(cmd.ErrOrStderr(), cfg.LogLevel, runID), func() {}, nil
	}

	f, err := logger.OpenLogFile(cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return logger.New(f, cfg.LogLevel, runID), func() { f.Close() }, nil
}

func openInput(ctx context.Context, cmd *cobra.Command, args []string, followMode bool) (io.ReadCloser, error) {
	if followMode {
		r, err := follow.NewReader(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return source.NewMultiReader(args, cmd.InOrStdin()), nil
}

// useColor resolves the color mode for the transcript writer.
func useColor(mode string, out io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		// color.NoColor honors NO_COLOR and TERM=dumb.
		return logger.IsTerminal(out) && !color.NoColor
	}
}
