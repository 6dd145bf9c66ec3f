package cmd

import (
	"context"
	"errors"
	"os"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/config"
	goerrors "github.com/goliatone/go-errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var debug bool

// loadApp is replaced in tests.
var loadApp = func(ctx context.Context) (*App, error) {
	opts, err := config.Load()
	if err != nil {
		return nil, err
	}
	if debug {
		opts.Debug = true
	}
	return Bootstrap(ctx, opts)
}

// NewRootCommand builds the authctl command tree. The returned release func
// closes the app the tree loaded itself; it runs whether or not the command
// failed, since cobra skips post-run hooks on error. Apps injected through
// the context belong to the caller and are left open.
func NewRootCommand() (*cobra.Command, func() error) {
	var owned *App
	release := func() error {
		if owned == nil {
			return nil
		}
		app := owned
		owned = nil
		return app.Close()
	}

	root := &cobra.Command{
		Use:   "authctl",
		Short: "Session client for the remote authentication API",
		Long: `authctl signs in against the remote authentication API, keeps the session
in the configured slot store and answers route navigation questions.

Configuration is read from AUTH_* environment variables and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := AppFromContext(cmd.Context()); err == nil {
				return nil
			}
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			owned = app
			cmd.SetContext(WithApp(cmd.Context(), app))
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (also set via AUTH_DEBUG=true)")
	root.AddCommand(newLoginCmd())
	root.AddCommand(newRegisterCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCheckCmd())
	return root, release
}

// Execute runs the root command
func Execute() {
	root, release := NewRootCommand()
	err := root.ExecuteContext(context.Background())
	if closeErr := release(); closeErr != nil {
		pterm.Warning.Println("close session store: " + closeErr.Error())
	}
	if err != nil {
		pterm.Error.Println(describe(err))
		os.Exit(1)
	}
}

// describe prefers the user facing message of auth errors.
func describe(err error) string {
	var richErr *goerrors.Error
	if errors.As(err, &richErr) {
		return auth.UserMessage(err)
	}
	return err.Error()
}
