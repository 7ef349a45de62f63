package main

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
)

var dashboardHeader = []any{
	"Request", "Client", "Consultant", "Milestone", "Anchor event",
	"Base date", "Deadline", "Completed at", "Business days remaining",
	"Alert", "Message", "Completed late",
}

func writeDashboardXLSX(w io.Writer, kind milestone.DashboardKind, views []milestone.View) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := string(kind)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &dashboardHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return err
	}

	for i, v := range views {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := dashboardRow(v)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func dashboardRow(v milestone.View) []any {
	title, client, consultant := v.RequestID.String(), "", ""
	if v.Request != nil {
		if v.Request.Title != "" {
			title = v.Request.Title
		}
		client, consultant = v.Request.ClientName, v.Request.ConsultantID
	}
	var remaining any
	if v.BusinessDaysRemaining != nil {
		remaining = *v.BusinessDaysRemaining
	}
	return []any{
		title, client, consultant, v.Name, v.AnchorEvent,
		formatDate(v.BaseDate), formatDate(v.Deadline), formatDate(v.CompletedAt), remaining,
		string(v.AlertState), v.Message, v.CompletedLate,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
