package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erp/printdispatch/internal/bootstrap"
	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/erp/printdispatch/internal/interfaces/http/dto"
)

var (
	printDevice      string
	printOrientation string
	printCopies      int
)

var printCmd = &cobra.Command{
	Use:   "print <source>...",
	Short: "Print one or more files",
	Long: `Print each source in turn and wait for its run to finish. A source is a
local path or an s3://bucket/key URI when object storage is enabled. Without
--device the system default destination is used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrint,
}

func init() {
	printCmd.Flags().StringVarP(&printDevice, "device", "d", "", "destination name")
	printCmd.Flags().StringVarP(&printOrientation, "orientation", "o", "", "portrait or landscape")
	printCmd.Flags().IntVarP(&printCopies, "copies", "n", 1, "number of copies")
	rootCmd.AddCommand(printCmd)
}

func runPrint(cmd *cobra.Command, args []string) error {
	opts := []printing.RequestOption{printing.WithCopies(printCopies)}
	if device := strings.TrimSpace(printDevice); device != "" {
		opts = append(opts, printing.WithDevice(device))
	}
	if printOrientation != "" {
		o, err := printing.ParseOrientation(printOrientation)
		if err != nil {
			return err
		}
		opts = append(opts, printing.WithOrientation(o))
	}

	return withApp(cmd.Context(), func(app *bootstrap.App) error {
		failed := 0
		for _, source := range args {
			req, err := printing.NewPrintRequest(source, opts...)
			if err != nil {
				return err
			}
			result, err := app.Orchestrator.Dispatch(cmd.Context(), req)
			if result == nil {
				return err
			}
			if err != nil || len(result.Failures) > 0 {
				failed++
			}
			if perr := printJSON(cmd.OutOrStdout(), dto.NewPrintRunResponse(result)); perr != nil {
				return perr
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d runs did not print every page", failed, len(args))
		}
		return nil
	})
}
