// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/config"
)

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	return newUserCmdWithDeps(nil)
}

func newUserCmdWithDeps(deps *UserDeps) *cobra.Command {
	if deps == nil {
		deps = &UserDeps{}
	}
	if deps.BackendOpener == nil {
		deps.BackendOpener = openBackend
	}
	if deps.PasswordReader == nil {
		deps.PasswordReader = readTerminalPassword
	}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts directly against storage",
	}
	defaults := config.Default()
	cmd.PersistentFlags().String("storage-driver", "", "storage driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	cmd.PersistentFlags().String("sqlite-path", defaults.Storage.SQLitePath, "SQLite database file")

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			fromStdin, _ := cmd.Flags().GetBool("password-stdin")

			password, err := readPassword(cmd, fromStdin, deps.PasswordReader)
			if err != nil {
				return err
			}
			return withServices(cmd, deps, func(ctx context.Context, svc *services) error {
				user, err := svc.auth.Signup(ctx, email, password)
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), user)
				return nil
			})
		},
	}
	create.Flags().String("email", "", "account email")
	create.Flags().Bool("password-stdin", false, "read the password from stdin")
	_ = create.MarkFlagRequired("email")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts with an email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			return withServices(cmd, deps, func(ctx context.Context, svc *services) error {
				users, err := svc.users.ListByEmail(ctx, email)
				if err != nil {
					return err
				}
				for _, u := range users {
					printUser(cmd.OutOrStdout(), u)
				}
				return nil
			})
		},
	}
	list.Flags().String("email", "", "account email")
	_ = list.MarkFlagRequired("email")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return oops.Code("INVALID_ID").With("input", args[0]).Wrapf(err, "invalid user id %q", args[0])
			}
			return withServices(cmd, deps, func(ctx context.Context, svc *services) error {
				user, err := svc.users.GetByID(ctx, id)
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), user)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return oops.Code("INVALID_ID").With("input", args[0]).Wrapf(err, "invalid user id %q", args[0])
			}
			return withServices(cmd, deps, func(ctx context.Context, svc *services) error {
				user, err := svc.users.Remove(ctx, id)
				if err != nil {
					return err
				}
				cmd.Printf("Removed %d %s\n", user.ID, user.Email)
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, get, remove)
	return cmd
}

func withServices(cmd *cobra.Command, deps *UserDeps, run func(ctx context.Context, svc *services) error) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Storage.Driver == config.DriverMemory {
		return oops.Code("CONFIG_INVALID").
			With("key", "storage.driver").
			Errorf("the memory driver does not persist; use sqlite or postgres")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := deps.BackendOpener(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer b.Close()

	svc, err := newServices(b, cfg.Hasher, slog.Default())
	if err != nil {
		return err
	}
	return run(ctx, svc)
}

// readPassword takes the first line of stdin or prompts on the terminal.
func readPassword(cmd *cobra.Command, fromStdin bool, prompt func(io.Writer) (string, error)) (string, error) {
	if !fromStdin {
		return prompt(cmd.ErrOrStderr())
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readTerminalPassword(prompt io.Writer) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", oops.Code("PASSWORD_READ_FAILED").Errorf("stdin is not a terminal; use --password-stdin")
	}
	_, _ = fmt.Fprint(prompt, "Password: ")
	pw, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(prompt)
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return string(pw), nil
}

func printUser(w io.Writer, u *auth.User) {
	_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Email, u.CreatedAt.UTC().Format(time.RFC3339))
}
