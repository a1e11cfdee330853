package repo

import (
	"context"
	"database/sql"
	"errors"

	"planline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const projectColumns = `id,name,start_date,end_date,status,status_manual,status_manual_value,auto_shift_tasks,
scope,github_link,coordinator,automation_support,requesting_agency,internal_department,
sponsoring_manager,sponsoring_manager_contact,technical_manager,technical_manager_contact,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (domain.Project, error) {
	var p domain.Project
	var start, end, manualValue sql.NullString
	var scope, github, coordinator, autoSupport, agency, dept sql.NullString
	var sponsor, sponsorContact, tech, techContact sql.NullString
	var manual, autoShift int
	err := row.Scan(&p.ID, &p.Name, &start, &end, &p.Status, &manual, &manualValue, &autoShift,
		&scope, &github, &coordinator, &autoSupport, &agency, &dept,
		&sponsor, &sponsorContact, &tech, &techContact, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.StartDate = optional(start)
	p.EndDate = optional(end)
	p.StatusManual = manual != 0
	p.StatusManualValue = optional(manualValue)
	p.AutoShiftTasks = autoShift != 0
	p.Scope = optional(scope)
	p.GithubLink = optional(github)
	p.Coordinator = optional(coordinator)
	p.AutomationSupport = optional(autoSupport)
	p.RequestingAgency = optional(agency)
	p.InternalDepartment = optional(dept)
	p.SponsoringManager = optional(sponsor)
	p.SponsoringManagerContact = optional(sponsorContact)
	p.TechnicalManager = optional(tech)
	p.TechnicalManagerContact = optional(techContact)
	return p, nil
}

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, nullablePtr(p.StartDate), nullablePtr(p.EndDate), p.Status,
		boolInt(p.StatusManual), nullablePtr(p.StatusManualValue), boolInt(p.AutoShiftTasks),
		nullablePtr(p.Scope), nullablePtr(p.GithubLink), nullablePtr(p.Coordinator), nullablePtr(p.AutomationSupport),
		nullablePtr(p.RequestingAgency), nullablePtr(p.InternalDepartment),
		nullablePtr(p.SponsoringManager), nullablePtr(p.SponsoringManagerContact),
		nullablePtr(p.TechnicalManager), nullablePtr(p.TechnicalManagerContact), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	return scanProject(tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// SingleProject returns the only project in the database, or ErrNotFound
// when there are zero or several.
func (r Repo) SingleProject(ctx context.Context) (domain.Project, error) {
	items, err := r.ListProjects(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	if len(items) != 1 {
		return domain.Project{}, ErrNotFound
	}
	return items[0], nil
}

// UpdateProjectTx rewrites a project's mutable descriptive fields and the
// shift/status flags. Derived dates are not touched here.
func (r Repo) UpdateProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET name=?, scope=?, github_link=?, coordinator=?,
automation_support=?, requesting_agency=?, internal_department=?, sponsoring_manager=?,
sponsoring_manager_contact=?, technical_manager=?, technical_manager_contact=?, auto_shift_tasks=?
WHERE id=?`,
		p.Name, nullablePtr(p.Scope), nullablePtr(p.GithubLink), nullablePtr(p.Coordinator),
		nullablePtr(p.AutomationSupport), nullablePtr(p.RequestingAgency), nullablePtr(p.InternalDepartment),
		nullablePtr(p.SponsoringManager), nullablePtr(p.SponsoringManagerContact),
		nullablePtr(p.TechnicalManager), nullablePtr(p.TechnicalManagerContact),
		boolInt(p.AutoShiftTasks), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetProjectStatusTx(ctx context.Context, tx *sql.Tx, id, status string, manual bool, manualValue *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET status=?, status_manual=?, status_manual_value=? WHERE id=?`,
		status, boolInt(manual), nullablePtr(manualValue), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProjectTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RefreshProjectDatesTx re-derives a project's date range from its
// macrostages and stores it. Returns the derived bounds.
func (r Repo) RefreshProjectDatesTx(ctx context.Context, tx *sql.Tx, projectID string) (*string, *string, error) {
	var start, end sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT MIN(start_date), MAX(end_date) FROM macrostages WHERE project_id=?`, projectID).
		Scan(&start, &end)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET start_date=?, end_date=? WHERE id=?`,
		nullString(start), nullString(end), projectID); err != nil {
		return nil, nil, err
	}
	return optional(start), optional(end), nil
}

// --- helpers ---

func optional(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullString(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}

func nullablePtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
