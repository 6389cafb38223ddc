package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with the configured identity provider",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored sign-in token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.cfg.Account.Mode != "oauth" {
		fmt.Fprintf(cmd.OutOrStdout(), "Account mode is %q; punches belong to user %q.\n", a.cfg.Account.Mode, a.cfg.User.ID)
		fmt.Fprintln(cmd.OutOrStdout(), `Set "account": {"mode": "oauth", ...} in the config to sign in.`)
		return nil
	}

	p, err := a.oauth()
	if err != nil {
		return err
	}
	user, err := p.Login(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", describeUser(user.Name, user.Email, user.ID))
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeUser(user.Name, user.Email, user.ID))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := loadApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()
	if a.cfg.Account.Mode != "oauth" {
		return nil
	}
	p, err := a.oauth()
	if err != nil {
		return err
	}
	if err := p.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}

func describeUser(name, email, id string) string {
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s> (%s)", name, email, id)
	case name != "":
		return fmt.Sprintf("%s (%s)", name, id)
	case email != "":
		return fmt.Sprintf("%s (%s)", email, id)
	}
	return id
}
