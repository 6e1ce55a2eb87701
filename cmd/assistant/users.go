package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/config"
	"github.com/garyjia/campus-assistant/internal/container"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

// store is the database opened by a maintenance command
type store struct {
	db     *container.DatabaseBundle
	repos  *container.RepositoryBundle
	loc    *time.Location
	logger *zap.Logger
}

func (o *globalOptions) openStore() (*store, *config.Config, error) {
	cfg, err := o.loadConfig(false)
	if err != nil {
		return nil, nil, err
	}

	logger, err := o.newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	cc := cfg.ToContainerConfig(GetVersion())
	db, err := container.ProvideDatabase(&cc.Database, logger)
	if err != nil {
		return nil, nil, err
	}

	repos, err := container.ProvideRepositories(db.TransactionMgr, cc.Schedule.Location, logger)
	if err != nil {
		_ = db.DB.Close()
		return nil, nil, err
	}

	return &store{db: db, repos: repos, loc: cc.Schedule.Location, logger: logger}, cfg, nil
}

func (s *store) Close() {
	_ = s.db.DB.Close()
	_ = s.logger.Sync()
}

func usersCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage registered users",
	}
	cmd.AddCommand(usersAddCmd(opts), usersBanCmd(opts, true), usersBanCmd(opts, false))
	return cmd
}

func usersAddCmd(opts *globalOptions) *cobra.Command {
	var (
		name string
		role string
	)

	cmd := &cobra.Command{
		Use:   "add <open_id>",
		Short: "Register a user, typically the first administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}

			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			existing, err := s.repos.Users.GetByOpenID(ctx, args[0])
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("user %s is already registered with id %d", args[0], existing.ID)
			}

			user := &entity.User{
				OpenID:       args[0],
				FullName:     name,
				Role:         role,
				RegisteredAt: time.Now().In(s.loc),
			}
			if err := s.repos.Users.Create(ctx, user); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as %s (id %d)\n", user.DisplayName(), user.Role, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&role, "role", entity.RoleUser, "Role: user, management or admin")
	return cmd
}

func usersBanCmd(opts *globalOptions, banned bool) *cobra.Command {
	use, short := "ban <open_id>", "Restrict a user's access"
	if !banned {
		use, short = "unban <open_id>", "Restore a user's access"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			user, err := s.repos.Users.GetByOpenID(ctx, args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("no user with open id %s", args[0])
			}

			if err := s.repos.Users.SetBanned(ctx, user.ID, banned); err != nil {
				if errors.Is(err, port.ErrNotFound) {
					return fmt.Errorf("no user with open id %s", args[0])
				}
				return err
			}

			state := "banned"
			if !banned {
				state = "unbanned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", user.DisplayName(), state)
			return nil
		},
	}
}

func validRole(role string) bool {
	switch role {
	case entity.RoleUser, entity.RoleManagement, entity.RoleAdmin:
		return true
	}
	return false
}
