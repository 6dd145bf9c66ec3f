package cmd

import (
	auth "github.com/goliatone/go-auth-client"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var credentials auth.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := AppFromContext(cmd.Context())
			if err != nil {
				return err
			}

			session, err := app.Service.Login(cmd.Context(), credentials)
			if err != nil {
				return err
			}

			pterm.Success.Printf("Signed in as %s\n", displayName(&session.Identity))
			pterm.Info.Printf("Role: %s\n", session.Role())
			return nil
		},
	}

	cmd.Flags().StringVar(&credentials.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&credentials.Password, "password", "", "Account password")
	return cmd
}

func displayName(identity *auth.Identity) string {
	if identity == nil {
		return ""
	}
	if identity.DisplayName != "" {
		return identity.DisplayName
	}
	if identity.Email != "" {
		return identity.Email
	}
	return identity.ID
}
