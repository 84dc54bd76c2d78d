package main

import (
	"fmt"

	"github.com/mr1hm/school-finance/internal/models"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage login accounts",
}

var userCreateFlags struct {
	username string
	password string
	role     string
	fullName string
	email    string
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := userCreateFlags
		role, err := models.ParseRole(f.role)
		if err != nil {
			return err
		}
		u := &models.User{
			Username: f.username,
			FullName: f.fullName,
			Email:    f.email,
			Role:     role,
			IsActive: true,
		}
		if err := u.SetPassword(f.password); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.CreateUser(cmd.Context(), u); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %q (id %d)\n", u.Role, u.Username, u.ID)
		return nil
	},
}

var userPasswdFlags struct {
	username string
	password string
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Reset a user's password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		u, err := db.GetUserByUsername(cmd.Context(), userPasswdFlags.username)
		if err != nil {
			return fmt.Errorf("error finding user %q: %w", userPasswdFlags.username, err)
		}
		if err := u.SetPassword(userPasswdFlags.password); err != nil {
			return err
		}
		if err := db.UpdatePassword(cmd.Context(), u.ID, u.PasswordHash); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %q\n", u.Username)
		return nil
	},
}

var userActiveFlags struct {
	username string
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := db.GetUserByUsername(cmd.Context(), userActiveFlags.username)
			if err != nil {
				return fmt.Errorf("error finding user %q: %w", userActiveFlags.username, err)
			}
			if err := db.SetUserActive(cmd.Context(), u.ID, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %q\n", short, u.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userActiveFlags.username, "username", "u", "", "login name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func init() {
	fl := userCreateCmd.Flags()
	fl.StringVarP(&userCreateFlags.username, "username", "u", "", "login name")
	fl.StringVarP(&userCreateFlags.password, "password", "p", "", "initial password (at least 6 characters)")
	fl.StringVarP(&userCreateFlags.role, "role", "r", string(models.RoleViewer), "admin, accountant or viewer")
	fl.StringVar(&userCreateFlags.fullName, "full-name", "", "display name")
	fl.StringVar(&userCreateFlags.email, "email", "", "email address")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")

	pf := userPasswdCmd.Flags()
	pf.StringVarP(&userPasswdFlags.username, "username", "u", "", "login name")
	pf.StringVarP(&userPasswdFlags.password, "password", "p", "", "new password (at least 6 characters)")
	_ = userPasswdCmd.MarkFlagRequired("username")
	_ = userPasswdCmd.MarkFlagRequired("password")

	userCmd.AddCommand(
		userCreateCmd,
		userPasswdCmd,
		setActiveCmd("deactivate", "Deactivated user", false),
		setActiveCmd("activate", "Activated user", true),
	)
	rootCmd.AddCommand(userCmd)
}
