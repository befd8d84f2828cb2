package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imfrisiv/mail-backend/app"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mail-backend version %s\n", app.Version)
		},
	}
}
