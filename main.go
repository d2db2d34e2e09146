package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is the application version, set via ldflags.
var version = "dev"

// newRootCmd builds the treetok command. Flags are bound into a private
// viper instance so config file and environment values share one lookup.
func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	setConfigDefaults(v)

	cmd := &cobra.Command{
		Use:   "treetok [PATHS...]",
		Short: "Display directory trees with LLM token counts",
		Long: `treetok walks directories and shows, for every file, how many tokens
one or more LLM tokenizers assign to it, as a tree, a flat list or JSON.

Paths default to the current directory. Use "-" to read a single file from
stdin; piped stdin is read automatically when no paths are given.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			if err := readConfigFile(v, cfgFile); err != nil {
				return fmt.Errorf("%w: %v", ErrBadInvocation, err)
			}
			cfg, err := loadConfig(v, args)
			if err != nil {
				return err
			}

			logger := newLogger(stderr, cfg.Debug)
			defer func() { _ = logger.Sync() }()
			defer captureStdLog(logger)()

			streams := IO{Stdin: stdin, Stdout: stdout}
			if f, ok := stdin.(*os.File); ok {
				streams.StdinPiped = stdinIsPiped(f)
			}
			return run(cmd.Context(), cfg, streams, logger)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrBadInvocation, err)
	})

	flags := cmd.Flags()
	flags.String("config", "", "config file (default is $HOME/.config/treetok/treetok.toml)")

	// Tokenizers
	flags.StringSliceP("tokenizer", "t", nil, "Tokenizer to use (repeatable): o200k, claude, cl100k, hf")
	_ = v.BindPFlag("tokenizers", flags.Lookup("tokenizer"))
	flags.Bool("offline", false, "Use only offline tokenizers")
	_ = v.BindPFlag("offline", flags.Lookup("offline"))

	// Traversal
	flags.Bool("no-ignore", false, "Don't respect .gitignore and .ignore files")
	_ = v.BindPFlag("no_ignore", flags.Lookup("no-ignore"))
	flags.BoolP("hidden", "H", false, "Include hidden files and directories")
	_ = v.BindPFlag("hidden", flags.Lookup("hidden"))
	flags.IntP("depth", "L", 0, "Maximum tree depth (0 for no limit; ignored with --flat)")
	_ = v.BindPFlag("depth", flags.Lookup("depth"))

	// Output
	flags.BoolP("sort", "s", false, "Sort entries by token count, largest first")
	_ = v.BindPFlag("sort", flags.Lookup("sort"))
	flags.Bool("json", false, "Emit JSON")
	_ = v.BindPFlag("json", flags.Lookup("json"))
	flags.Bool("flat", false, "Flat list of paths instead of a tree")
	_ = v.BindPFlag("flat", flags.Lookup("flat"))
	flags.BoolP("count", "c", false, "Print only the total token count")
	_ = v.BindPFlag("count", flags.Lookup("count"))
	flags.Bool("no-color", false, "Disable colored output")
	_ = v.BindPFlag("no_color", flags.Lookup("no-color"))
	flags.Bool("copy", false, "Also copy the output to the clipboard")
	_ = v.BindPFlag("copy", flags.Lookup("copy"))

	// Processing
	flags.Int("threads", 0, "Workers for local tokenization (0 for one per CPU)")
	_ = v.BindPFlag("threads", flags.Lookup("threads"))
	flags.Bool("debug", false, "Log debug diagnostics to stderr")
	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	_ = flags.MarkHidden("debug")

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(exitCodeFor(err))
	}
}
