package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
)

func newDashboardCmd() *cobra.Command {
	var consultant string
	var xlsxPath string
	cmd := &cobra.Command{
		Use:       "dashboard <overdue|due-soon|dormant|completed>",
		Short:     "Print a dashboard list or export it to xlsx",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"overdue", "due-soon", "dormant", "completed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := milestone.DashboardKind(args[0])
			if !kind.Valid() {
				return withCode(exitUsage, fmt.Errorf("unknown dashboard %q", args[0]))
			}
			ctx, s, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			views, err := s.dashboard().List(ctx, kind, milestone.DashboardFilter{ConsultantID: consultant})
			if err != nil {
				return err
			}

			if xlsxPath == "" {
				for _, v := range views {
					if err := writeJSONLine(cmd.OutOrStdout(), v); err != nil {
						return err
					}
				}
				return nil
			}

			f, err := os.Create(xlsxPath)
			if err != nil {
				return withCode(exitUsage, err)
			}
			if err := writeDashboardXLSX(f, kind, views); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"status": "exported",
				"file":   xlsxPath,
				"rows":   len(views),
			})
		},
	}
	cmd.Flags().StringVar(&consultant, "consultant", "", "Only requests owned by this consultant")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the list to this xlsx file instead of stdout")
	return cmd
}
