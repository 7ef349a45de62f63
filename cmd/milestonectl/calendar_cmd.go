package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iota-uz/recruit-sla/pkg/bizcal"
	"github.com/iota-uz/recruit-sla/pkg/configuration"
)

func newCalendarCmd() *cobra.Command {
	var holidaysFile string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Business-day arithmetic against the holiday calendar",
	}
	cmd.PersistentFlags().StringVar(&holidaysFile, "holidays", "", "Holiday TOML file (defaults to HOLIDAYS_FILE)")

	resolve := func(cmd *cobra.Command) string {
		if cmd.Flags().Changed("holidays") {
			return holidaysFile
		}
		return configuration.Use().Milestones.HolidaysFile
	}
	load := func(cmd *cobra.Command) (*bizcal.Calendar, error) {
		cal, err := bizcal.Load(resolve(cmd))
		if err != nil {
			return nil, withCode(exitValidation, err)
		}
		return cal, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <date> <n>",
		Short: "Print the date n business days after date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateArg("date", args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid n %q: %w", args[1], err))
			}
			cal, err := load(cmd)
			if err != nil {
				return err
			}
			result, err := cal.AddBusinessDays(start, n)
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"start":         bizcal.Date(start).Format(time.DateOnly),
				"business_days": n,
				"result":        result.Format(time.DateOnly),
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "between <from> <to>",
		Short: "Print the signed business-day count from one date to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDateArg("from", args[0])
			if err != nil {
				return err
			}
			to, err := parseDateArg("to", args[1])
			if err != nil {
				return err
			}
			cal, err := load(cmd)
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"from":          bizcal.Date(from).Format(time.DateOnly),
				"to":            bizcal.Date(to).Format(time.DateOnly),
				"business_days": cal.BusinessDaysBetween(from, to),
			})
		},
	})

	holidays := &cobra.Command{
		Use:   "holidays",
		Short: "List the configured holidays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cal, err := load(cmd)
			if err != nil {
				return err
			}
			for _, h := range cal.Holidays() {
				if err := writeJSONLine(cmd.OutOrStdout(), map[string]string{
					"date": h.Date.Format(time.DateOnly),
					"name": h.Name,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	holidays.AddCommand(&cobra.Command{
		Use:   "add <date> [name]",
		Short: "Add a holiday to the calendar file, replacing any entry on the same date",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolve(cmd)
			if strings.TrimSpace(path) == "" {
				return withCode(exitUsage, fmt.Errorf("--holidays or HOLIDAYS_FILE is required"))
			}
			date, err := parseDateArg("date", args[0])
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 2 {
				name = strings.TrimSpace(args[1])
			}

			existing, err := bizcal.LoadHolidaysTOML(path)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return withCode(exitValidation, err)
			}
			// Later entries win in New, so the new name replaces an existing one.
			updated := bizcal.New(append(existing, bizcal.Holiday{Date: date, Name: name})...).Holidays()

			var buf bytes.Buffer
			if err := bizcal.WriteHolidaysTOML(&buf, updated); err != nil {
				return err
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"status":   "added",
				"date":     bizcal.Date(date).Format(time.DateOnly),
				"holidays": len(updated),
			})
		},
	})
	cmd.AddCommand(holidays)

	return cmd
}
