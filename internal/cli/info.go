package cli

import (
	"github.com/spf13/cobra"
)

func newInfoCommand(e *env) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Describe the input file without cleaning it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := e.newPipeline(nil).Info(input)
			if err != nil {
				return err
			}
			renderInfo(e.stdout, info)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "raw creature CSV (default ETL_INPUT_PATH)")
	return cmd
}
