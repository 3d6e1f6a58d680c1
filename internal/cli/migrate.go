package cli

import (
	"fmt"

	"github.com/MrEthical07/goSession/internal/identity"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending user database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openUsers(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			version, err := store.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}

func (a *app) openUsers(cmd *cobra.Command) (*identity.Store, error) {
	store, err := identity.Open(a.cfg.Database.Path, a.logger)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("user database: %w", err)
	}
	return store, nil
}
