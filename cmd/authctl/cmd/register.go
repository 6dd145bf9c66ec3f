package cmd

import (
	auth "github.com/goliatone/go-auth-client"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	var (
		registration auth.Registration
		age          int
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Creates an account on the remote API. When the API answers with a token the
new session is established right away, otherwise sign in with "authctl login".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := AppFromContext(cmd.Context())
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("age") {
				registration.Age = &age
			}

			result, err := app.Service.Register(cmd.Context(), registration)
			if err != nil {
				return err
			}

			if result.LoggedIn() {
				pterm.Success.Printf("Account created, signed in as %s\n", displayName(&result.Session.Identity))
				return nil
			}
			pterm.Success.Println("Account created")
			pterm.Info.Println("Run `authctl login` to sign in")
			return nil
		},
	}

	cmd.Flags().StringVar(&registration.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&registration.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&registration.Password, "password", "", "Account password")
	cmd.Flags().IntVar(&age, "age", 0, "Age in years")
	return cmd
}
