package main

import (
	"fmt"
	"time"

	"tradeline/internal/auth"
	"tradeline/internal/config"
	"tradeline/internal/rbac"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		id  auth.Identity
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the ops API",
		Long: "Issues an access token signed with JWT_SECRET. With --ttl a service token\n" +
			"with that lifetime is issued instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rbac.IsKnown(id.Role) {
				return fmt.Errorf("unknown role %q", id.Role)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}

			var tok string
			if ttl > 0 {
				tok, err = m.IssueService(time.Now(), id, ttl)
			} else {
				tok, err = m.IssueAccess(time.Now(), id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&id.OperatorID, "user", "", "operator id")
	cmd.Flags().StringVar(&id.WorkspaceID, "workspace", "", "workspace id")
	cmd.Flags().StringVar(&id.Role, "role", rbac.RoleAnalyst, "owner, agent, analyst or super_admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "issue a service token with this lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
