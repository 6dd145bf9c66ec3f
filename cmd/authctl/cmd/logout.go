package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := AppFromContext(cmd.Context())
			if err != nil {
				return err
			}

			app.Service.Logout(cmd.Context())
			pterm.Success.Println("Signed out")
			return nil
		},
	}
}
