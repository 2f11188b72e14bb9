package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/portal"
)

var (
	loginUsername string
	loginPassword string

	regUsername string
	regEmail    string
	regPassword string
	regFullName string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "sign in and store the session token",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "clear the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "create a student account and sign in",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username (prompted when omitted)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted when omitted)")

	registerCmd.Flags().StringVarP(&regUsername, "username", "u", "", "username (prompted when omitted)")
	registerCmd.Flags().StringVarP(&regEmail, "email", "e", "", "email address (prompted when omitted)")
	registerCmd.Flags().StringVarP(&regPassword, "password", "p", "", "password (prompted when omitted)")
	registerCmd.Flags().StringVar(&regFullName, "name", "", "full name")
}

func promptLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewLogin)
	if err != nil {
		return err
	}
	defer app.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	username := loginUsername
	if username == "" {
		if username, err = promptLine(in, out, "Username: "); err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		if password, err = promptLine(in, out, "Password: "); err != nil {
			return err
		}
	}

	user, err := app.Login(cmd.Context(), username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s (%s)\n", user.Username, user.Role)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	// Public view, but entering it restores the stored session so the
	// backend logout goes out with the token before it is cleared.
	app, err := enter(cmd, portal.ViewLogin)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Logout(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "signed out")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewRegister)
	if err != nil {
		return err
	}
	defer app.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	req := api.RegisterRequest{
		Username: regUsername,
		Email:    regEmail,
		Password: regPassword,
		FullName: regFullName,
	}
	if req.Username == "" {
		if req.Username, err = promptLine(in, out, "Username: "); err != nil {
			return err
		}
	}
	if req.Email == "" {
		if req.Email, err = promptLine(in, out, "Email: "); err != nil {
			return err
		}
	}
	if req.Password == "" {
		if req.Password, err = promptLine(in, out, "Password: "); err != nil {
			return err
		}
	}

	user, err := app.Register(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "account created; signed in as %s (%s)\n", user.Username, user.Role)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	app, err := enter(cmd, portal.ViewWhoami)
	if err != nil {
		return err
	}
	defer app.Close()

	u := app.Session.Credential().Profile
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Username:  %s\n", u.Username)
	if u.FullName != "" {
		fmt.Fprintf(out, "Name:      %s\n", u.FullName)
	}
	fmt.Fprintf(out, "Email:     %s\n", u.Email)
	fmt.Fprintf(out, "Role:      %s\n", u.Role)
	return nil
}
