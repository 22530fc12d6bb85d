package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/erp/printdispatch/internal/bootstrap"
	"github.com/erp/printdispatch/internal/infrastructure/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "printctl",
	Short: "Print files through the dispatch pipeline",
	Long: `printctl converts images, PDF and office documents into print jobs and
submits them to a CUPS destination, using the same pipeline and configuration
as the printd server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// stdout carries command output
	if cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	if verbose {
		cfg.Log.Level = "debug"
	} else {
		cfg.Log.Level = "warn"
	}
	return cfg, nil
}

// withApp builds the pipeline, runs fn and releases everything afterwards
func withApp(ctx context.Context, fn func(app *bootstrap.App) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, cfg, bootstrap.Adapters{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
