package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/MrEthical07/goSession/internal/identity"
	"github.com/MrEthical07/goSession/password"
	"github.com/spf13/cobra"
)

// passwordEnv supplies the password for "user create" when --password is not given.
const passwordEnv = "BACKOFFICE_USER_PASSWORD"

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage back-office accounts",
	}
	cmd.AddCommand(newUserCreateCmd(a), newUserListCmd(a))
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var (
		username string
		name     string
		pw       string
		admin    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long:  "Create an account. The password is read from --password or " + passwordEnv + ".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return errors.New("--username is required")
			}
			if pw == "" {
				pw = os.Getenv(passwordEnv)
			}
			if pw == "" {
				return fmt.Errorf("--password or %s is required", passwordEnv)
			}

			engineCfg := a.cfg.Engine()
			hasher, err := password.NewArgon2(password.Config{
				Memory:           engineCfg.Password.Memory,
				Time:             engineCfg.Password.Time,
				Parallelism:      engineCfg.Password.Parallelism,
				SaltLength:       engineCfg.Password.SaltLength,
				KeyLength:        engineCfg.Password.KeyLength,
				MaxPasswordBytes: engineCfg.Password.MaxPasswordBytes,
			})
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(pw)
			if err != nil {
				return err
			}

			store, err := a.openUsers(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			acct, err := store.Create(cmd.Context(), identity.NewAccount{
				Username:     username,
				Name:         name,
				PasswordHash: hash,
				Admin:        admin,
			})
			if err != nil {
				return err
			}

			a.logger.Info("user created", "user_id", acct.ID, "admin", acct.Admin)
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", acct.ID, acct.Username)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&username, "username", "", "Login name")
	f.StringVar(&name, "name", "", "Display name")
	f.StringVar(&pw, "password", "", "Password (at least 10 bytes)")
	f.BoolVar(&admin, "admin", false, "Grant admin permission")

	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openUsers(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			accounts, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tADMIN\tACTIVE")
			for _, acct := range accounts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\n", acct.ID, acct.Username, acct.Name, acct.Admin, acct.Active)
			}
			return tw.Flush()
		},
	}
}
