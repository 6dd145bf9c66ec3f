package cmd

import (
	"fmt"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-print"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type statusView struct {
	State    string         `json:"state"`
	Identity *auth.Identity `json:"identity,omitempty"`
	Admin    bool           `json:"admin"`
}

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := AppFromContext(cmd.Context())
			if err != nil {
				return err
			}

			view := statusView{State: string(app.Service.State())}
			if session := app.Service.Current(); session != nil {
				view.Identity = &session.Identity
				view.Admin = session.IsAdmin()
			}

			if asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(view))
				return nil
			}

			pterm.DefaultSection.Println("Session")
			if view.Identity == nil {
				pterm.Info.Println("Not signed in")
				return nil
			}
			pterm.Info.Printf("User: %s\n", displayName(view.Identity))
			if view.Identity.Email != "" {
				pterm.Info.Printf("Email: %s\n", view.Identity.Email)
			}
			pterm.Info.Printf("Role: %s\n", view.Identity.Role)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session as JSON")
	return cmd
}
