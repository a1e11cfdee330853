package main

import (
	"encoding/csv"
	"io"
	"strconv"

	"planline/internal/engine"
)

// writeScheduleCSV flattens a schedule tree into level-tagged rows.
func writeScheduleCSV(w io.Writer, tree engine.ProjectTree) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	rows := [][]string{
		{"level", "name", "start_date", "end_date", "status", "progress"},
		{"project", tree.Project.Name, deref(tree.Project.StartDate), deref(tree.Project.EndDate),
			tree.Status.Value, progressCell(tree.Status.Progress)},
	}
	for _, mn := range tree.MacroStages {
		rows = append(rows, []string{"macrostage", mn.MacroStage.Name,
			deref(mn.MacroStage.StartDate), deref(mn.MacroStage.EndDate), "", ""})
		for _, sn := range mn.Stages {
			rows = append(rows, []string{"stage", sn.Stage.Name,
				deref(sn.Stage.StartDate), deref(sn.Stage.EndDate), sn.Status, progressCell(sn.Progress)})
			for _, t := range sn.Tasks {
				rows = append(rows, []string{"task", t.Name, deref(t.StartDate), deref(t.EndDate), "", ""})
			}
		}
		for _, t := range mn.Tasks {
			rows = append(rows, []string{"task", t.Name, deref(t.StartDate), deref(t.EndDate), "", ""})
		}
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func progressCell(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
