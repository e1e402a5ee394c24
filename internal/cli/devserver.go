package cli

import (
	"github.com/spf13/cobra"

	"github.com/idilsaglam/dayplan/internal/devserver"
)

type devServerOptions struct {
	Addr   string
	NoCSRF bool
}

func addDevServer(topLevel *cobra.Command, a *App) {
	o := &devServerOptions{}
	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run an in-memory backend for local use.",
		Long: `Run an in-memory backend for local use.

It serves the same routes the real backend does. Nothing is persisted.`,
		Example: `
dayplan dev-server --addr :8000
dayplan --base-url http://localhost:8000 --user jane-doe
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []devserver.Option{devserver.WithLogger(a.Log)}
			if o.NoCSRF {
				opts = append(opts, devserver.WithoutCSRF())
			}
			a.Log.Info("dev server listening", "addr", o.Addr)
			return devserver.New(opts...).ListenAndServe(cmd.Context(), o.Addr)
		},
	}
	cmd.Flags().StringVar(&o.Addr, "addr", ":8000", "Listen address.")
	cmd.Flags().BoolVar(&o.NoCSRF, "no-csrf", false, "Accept changes without an X-CSRFToken header.")
	topLevel.AddCommand(cmd)
}
