package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/pkg/configuration"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage milestone templates",
	}
	cmd.AddCommand(newCatalogSeedCmd(), newCatalogListCmd())
	return cmd
}

func newCatalogSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create templates from a YAML catalog file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(file) == "" {
				file = configuration.Use().Milestones.CatalogFile
			}
			if strings.TrimSpace(file) == "" {
				return withCode(exitUsage, fmt.Errorf("--file or TEMPLATE_CATALOG_FILE is required"))
			}
			f, err := os.Open(file)
			if err != nil {
				return withCode(exitUsage, err)
			}
			defer func() { _ = f.Close() }()

			ctx, s, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			created, err := s.catalog().SeedFromYAML(ctx, f)
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"status":  "seeded",
				"created": len(created),
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML catalog (defaults to TEMPLATE_CATALOG_FILE)")
	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var serviceType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print templates, one JSON object per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, s, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			types := []milestone.ServiceType{milestone.ServiceType(serviceType)}
			if strings.TrimSpace(serviceType) == "" {
				if types, err = s.catalog().ServiceTypes(ctx); err != nil {
					return err
				}
			}
			for _, st := range types {
				templates, err := s.catalog().TemplatesFor(ctx, st)
				if err != nil {
					return err
				}
				for _, t := range templates {
					if err := writeJSONLine(cmd.OutOrStdout(), t); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceType, "service-type", "", "Only this service type")
	return cmd
}
