package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"taeu.kr/filebox/internal/app"
	"taeu.kr/filebox/internal/config"
)

var (
	goEnv     string
	configDir string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and wires the application. The caller must defer app.Close().
func newApp() (*app.App, error) {
	if err := config.SetConfig(goEnv, configDir); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	a, err := app.New(config.Conf)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func parseUserIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid user id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var rootCmd = &cobra.Command{
	Use:           "filectl",
	Short:         "Filebox administration tool",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	},
}

// usage command
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect and repair storage usage",
}

var usageShowCmd = &cobra.Command{
	Use:   "show <user-id>...",
	Short: "Show recorded usage",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseUserIDs(args)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, id := range ids {
			usage, err := a.Files.Ledger().Usage(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("reading usage of %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", id, usage)
		}
		return nil
	},
}

var usageRecomputeCmd = &cobra.Command{
	Use:   "recompute [user-id]...",
	Short: "Re-measure usage from disk and overwrite the recorded value",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("pass user ids or --all")
		}
		ids, err := parseUserIDs(args)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if all {
			users, err := a.Accounts.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}
			ids = ids[:0]
			for _, user := range users {
				ids = append(ids, user.ID)
			}
		}

		for _, id := range ids {
			usage, err := a.RecomputeUsage(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("recomputing usage of %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", id, usage)
		}
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users and their capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.Accounts.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		for _, user := range users {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%v\n", user.ID, user.Username, user.Capabilities)
		}
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user together with shares, usage and files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseUserIDs(args)
		if err != nil {
			return err
		}
		dataOnly, _ := cmd.Flags().GetBool("data-only")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if dataOnly {
			err = a.Files.DeleteUserData(cmd.Context(), ids[0])
		} else {
			err = a.Accounts.DeleteUser(cmd.Context(), ids[0])
		}
		if err != nil {
			return fmt.Errorf("deleting user %d: %w", ids[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d\n", ids[0])
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Check configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check <name> <value>",
	Short: "Validate a files setting value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CheckFilesValue(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%s is valid\n", args[0], args[1])
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetConfig(goEnv, configDir); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&goEnv, "env", "development", "Environment (development or production)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "Directory holding config.<env>.yaml")

	usageCmd.AddCommand(usageShowCmd)
	usageCmd.AddCommand(usageRecomputeCmd)
	usageRecomputeCmd.Flags().Bool("all", false, "Recompute every user")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
	userDeleteCmd.Flags().Bool("data-only", false, "Only remove file data, keep the account")

	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(configCmd)
}
