// Package cli implements the taxdesk command line: account commands,
// request submission and tracking, and the admin console.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/validation"
)

const minPasswordLength = 6

// action is the body of a command that needs a running App.
type action func(cmd *cobra.Command, a *App, args []string) error

type commands struct {
	open Opener
}

// run opens the App, runs fn and closes the App again.
func (c commands) run(fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
			cmd.SetContext(ctx)
		}
		a, err := c.open(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
				a.log.Warn().Err(cerr).Msg("close store")
			}
		}()
		return fn(cmd, a, args)
	}
}

// NewRootCmd returns the taxdesk command tree. open is called once per
// command run.
func NewRootCmd(open Opener) *cobra.Command {
	c := commands{open: open}
	root := &cobra.Command{
		Use:           "taxdesk",
		Short:         "Submit and track tax filing requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.loginGoogleCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.resetPasswordCmd(),
		c.submitCmd(),
		c.requestsCmd(),
		c.requestCmd(),
		c.adminCmd(),
		c.doctorCmd(),
	)
	return root
}

// Message renders err for the terminal. Field errors are listed one per line.
func Message(err error) string {
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		keys := make([]string, 0, len(verrs.Fields))
		for k := range verrs.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := []string{"Please fix the following fields:"}
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  %s: %s", k, verrs.Fields[k]))
		}
		return strings.Join(lines, "\n")
	}
	return domain.UserMessage(err)
}

func (c commands) registerCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			pw, err := p.Password("Password")
			if err != nil {
				return err
			}
			if len(pw) < minPasswordLength {
				return fmt.Errorf("password must be at least %d characters", minPasswordLength)
			}
			confirm, err := p.Password("Confirm password")
			if err != nil {
				return err
			}
			if confirm != pw {
				return errors.New("passwords do not match")
			}

			id, err := a.session.Register(cmd.Context(), strings.TrimSpace(name), strings.TrimSpace(email), pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created")
			printSignedIn(cmd, id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c commands) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			pw, err := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).Password("Password")
			if err != nil {
				return err
			}
			id, err := a.session.SignIn(cmd.Context(), strings.TrimSpace(email), pw)
			if err != nil {
				return err
			}
			printSignedIn(cmd, id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c commands) loginGoogleCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "login-google",
		Short: "Sign in with a Google account",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			id, err := a.session.SignInWithGoogle(cmd.Context(), strings.TrimSpace(email), strings.TrimSpace(name))
			if err != nil {
				return err
			}
			printSignedIn(cmd, id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Google account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c commands) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored identity",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				// The local identity is already gone.
				a.log.Warn().Err(err).Msg("sign out")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		}),
	}
}

func (c commands) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			id := a.session.Current()
			if id == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nrole: %s\nuid:  %s\n", id.Name, id.Email, id.Role, id.UID)
			return nil
		}),
	}
}

func (c commands) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a password reset message",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			email = strings.TrimSpace(email)
			if err := a.session.ResetPassword(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "If an account exists for %s, a reset link is on its way.\n", email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c commands) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the backend and the local store",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			out := cmd.OutOrStdout()
			var failed bool
			check := func(name string, err error) {
				if err != nil {
					failed = true
					fmt.Fprintf(out, "%-8s FAIL  %s\n", name, domain.UserMessage(err))
					return
				}
				fmt.Fprintf(out, "%-8s ok\n", name)
			}
			check("api", a.api.Health(cmd.Context()))
			check("store", a.store.Ping(cmd.Context()))

			if id := a.session.Current(); id != nil {
				fmt.Fprintf(out, "%-8s %s (%s)\n", "session", id.Email, id.Role)
			} else {
				fmt.Fprintf(out, "%-8s signed out\n", "session")
			}
			if failed {
				return errors.New("some checks failed")
			}
			return nil
		}),
	}
}

func printSignedIn(cmd *cobra.Command, id *domain.Identity) {
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>", id.Name, id.Email)
	if id.IsAdmin() {
		fmt.Fprint(cmd.OutOrStdout(), " (admin)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
}
