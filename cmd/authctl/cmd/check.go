package cmd

import (
	"fmt"

	auth "github.com/goliatone/go-auth-client"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <public|authenticated|admin>",
		Short: "Evaluate navigation to a route class",
		Long: `Prints "allow" when the current session may open a route of the given class,
or "redirect <path>" with the route the guard sends it to instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := AppFromContext(cmd.Context())
			if err != nil {
				return err
			}

			class, err := auth.ParseRouteClass(args[0])
			if err != nil {
				return err
			}

			decision := app.Guard.CheckReader(app.Service, class)
			if decision.Allowed {
				fmt.Fprintln(cmd.OutOrStdout(), "allow")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "redirect %s\n", decision.Redirect)
			return nil
		},
	}
}
