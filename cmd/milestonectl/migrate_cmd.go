package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, s, err := connect(cmd.Context())
				if err != nil {
					return err
				}
				defer s.Close()
				if err := s.app.Migrations().Up(ctx); err != nil {
					return withCode(exitDB, err)
				}
				return writeJSONLine(cmd.OutOrStdout(), map[string]string{"status": "migrated"})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, s, err := connect(cmd.Context())
				if err != nil {
					return err
				}
				defer s.Close()
				if err := s.app.Migrations().Down(ctx); err != nil {
					return withCode(exitDB, err)
				}
				return writeJSONLine(cmd.OutOrStdout(), map[string]string{"status": "rolled_back"})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, s, err := connect(cmd.Context())
				if err != nil {
					return err
				}
				defer s.Close()
				statuses, err := s.app.Migrations().Status(ctx)
				if err != nil {
					return withCode(exitDB, err)
				}
				for _, st := range statuses {
					if err := writeJSONLine(cmd.OutOrStdout(), st); err != nil {
						return err
					}
				}
				return nil
			},
		},
	)
	return cmd
}
