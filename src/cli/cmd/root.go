package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sofmeright/imagefreight/src/config"
)

var (
	cfgFile string
	libRoot string
	setName string
	verbose bool
	index   *config.Index
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "imagefreight",
	Short: "Container image matrix builder",
	Long:  "ImageFreight expands library build matrices into image builds and runs them in parallel.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(verbose)

		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		index, err = config.LoadIndex(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "library index (default: "+config.DefaultIndexFile+")")
	rootCmd.PersistentFlags().StringVar(&libRoot, "root", "", "directory holding the library folders (default: the index's directory)")
	rootCmd.PersistentFlags().StringVar(&setName, "set", config.DefaultSet, "library set to select from the index")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// currentEnv captures the resolved root-level options.
func currentEnv() *runEnv {
	root := libRoot
	if root == "" {
		root = index.Dir()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &runEnv{
		Index:  index,
		Root:   root,
		Set:    setName,
		Logger: logger,
	}
}

// newLogger writes diagnostics to stderr: text on a terminal, JSON when
// piped into a CI log collector.
func newLogger(verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
