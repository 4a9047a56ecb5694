package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/monitor-provider/pkg/model"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the resource schema document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(model.SchemaDocument())
			return err
		},
	}
}
