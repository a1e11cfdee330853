package server

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"planline/internal/engine"
	"planline/internal/repo"
)

// registerExport serves the schedule as CSV. Registered on the router
// directly: streaming text does not fit the JSON operation model.
func registerExport(r chi.Router, basePath string, e engine.Engine) {
	r.Get(path.Join(basePath, "/projects/{project_id}/export.csv"), func(w http.ResponseWriter, req *http.Request) {
		projectID := chi.URLParam(req, "project_id")
		tree, err := e.GetProjectTree(req.Context(), projectID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", err.Error(), nil))
				return
			}
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil))
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tree.Project.Name+".csv"))
		cw := csv.NewWriter(w)
		defer cw.Flush()

		cw.Write([]string{"level", "name", "start_date", "end_date", "status", "progress"})
		cw.Write([]string{"project", tree.Project.Name,
			deref(tree.Project.StartDate), deref(tree.Project.EndDate),
			tree.Status.Value, progressCell(tree.Status.Progress)})
		for _, mn := range tree.MacroStages {
			cw.Write([]string{"macrostage", mn.MacroStage.Name,
				deref(mn.MacroStage.StartDate), deref(mn.MacroStage.EndDate), "", ""})
			for _, sn := range mn.Stages {
				cw.Write([]string{"stage", sn.Stage.Name,
					deref(sn.Stage.StartDate), deref(sn.Stage.EndDate),
					sn.Status, progressCell(sn.Progress)})
				for _, t := range sn.Tasks {
					cw.Write([]string{"task", t.Name, deref(t.StartDate), deref(t.EndDate), "", ""})
				}
			}
			for _, t := range mn.Tasks {
				cw.Write([]string{"task", t.Name, deref(t.StartDate), deref(t.EndDate), "", ""})
			}
		}
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func progressCell(p *int) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%d", *p)
}
