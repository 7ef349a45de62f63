package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
)

func newInstantiateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instantiate <request-id> <service-type>",
		Short: "Create dormant milestones for a request from its service type templates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseUUIDArg("request-id", args[0])
			if err != nil {
				return err
			}
			ctx, s, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			created, err := s.instances().InstantiateForRequest(ctx, requestID, milestone.ServiceType(args[1]))
			if err != nil {
				return err
			}
			return writeInstances(cmd, created)
		},
	}
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <request-id> <anchor-event> <date>",
		Short: "Start the clock on dormant milestones anchored to an event",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseUUIDArg("request-id", args[0])
			if err != nil {
				return err
			}
			eventDate, err := parseDateArg("date", args[2])
			if err != nil {
				return err
			}
			ctx, s, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			activated, err := s.instances().ActivateByEvent(ctx, requestID, args[1], eventDate)
			if err != nil {
				return err
			}
			return writeInstances(cmd, activated)
		},
	}
}

func newCompleteCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "complete <instance-id>",
		Short: "Mark an active milestone completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceID, err := parseUUIDArg("instance-id", args[0])
			if err != nil {
				return err
			}
			var completedAt *time.Time
			if at != "" {
				t, err := parseDateArg("--at", at)
				if err != nil {
					return err
				}
				completedAt = &t
			}
			ctx, s, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			inst, err := s.instances().Complete(ctx, instanceID, completedAt)
			if err != nil {
				return err
			}
			return writeInstances(cmd, []milestone.Instance{inst})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Completion time (YYYY-MM-DD or RFC3339); defaults to now")
	return cmd
}

func writeInstances(cmd *cobra.Command, instances []milestone.Instance) error {
	for _, inst := range instances {
		if err := writeJSONLine(cmd.OutOrStdout(), inst); err != nil {
			return err
		}
	}
	return nil
}
