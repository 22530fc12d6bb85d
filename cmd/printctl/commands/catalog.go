package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/erp/printdispatch/internal/bootstrap"
	"github.com/erp/printdispatch/internal/interfaces/http/dto"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List print destinations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			devices, err := app.Devices.List(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]dto.DeviceResponse, 0, len(devices))
			for _, d := range devices {
				out = append(out, dto.DeviceResponse{Name: d.Name, Default: d.Default})
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported input formats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd.OutOrStdout(), dto.SupportedFormats())
	},
}

var historyLimit int

var errHistoryDisabled = errors.New("run history is disabled; set database.enabled")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently finished runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			if app.History == nil {
				return errHistoryDisabled
			}
			runs, err := app.History.ListRecent(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			out := make([]dto.PrintRunResponse, 0, len(runs))
			for i := range runs {
				out = append(out, dto.NewPrintRunResponse(&runs[i]))
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove scratch files left behind by interrupted runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			removed, err := app.Scratch.SweepOlderThan(cmd.Context(), app.Config.Scratch.SweepAge)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"removed": removed})
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of runs")
	rootCmd.AddCommand(devicesCmd, formatsCmd, historyCmd, sweepCmd)
}
