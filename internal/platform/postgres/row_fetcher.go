package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/service/report"
	"github.com/crewviz/reportd/internal/store"
)

// RowFetcher implements report.RowFetcher over the application schema.
// Every query applies the stored scope as a hard WHERE filter, so a row
// outside the caller's department or project never reaches an encoder.
type RowFetcher struct {
	db store.DBTX
}

// NewRowFetcher creates a RowFetcher reading from the given database.
func NewRowFetcher(db store.DBTX) *RowFetcher {
	return &RowFetcher{db: db}
}

// reportQuery describes one report type: its column set and the SQL that
// produces it. The SQL takes exactly four parameters: from, to,
// department scope, project scope (nil meaning unrestricted).
type reportQuery struct {
	title   string
	headers []string
	sql     string
}

var reportQueries = map[domain.ReportType]reportQuery{
	domain.ReportTypeTask: {
		title:   "Task Report",
		headers: []string{"Task", "Project", "Assignee", "Status", "Due"},
		sql: `
			SELECT t.title, p.name, e.full_name, t.status, t.due_date
			FROM tasks t
			JOIN projects p ON p.id = t.project_id
			LEFT JOIN employees e ON e.id = t.assignee_id
			WHERE t.created_at >= COALESCE($1, t.created_at)
			  AND t.created_at <= COALESCE($2, t.created_at)
			  AND ($3::uuid IS NULL OR p.department_id = $3)
			  AND ($4::uuid IS NULL OR t.project_id = $4)
			ORDER BY t.due_date NULLS LAST, t.title
		`,
	},
	domain.ReportTypeProject: {
		title:   "Project Report",
		headers: []string{"Project", "Department", "Open Tasks", "Done Tasks"},
		sql: `
			SELECT p.name, d.name,
			       COUNT(*) FILTER (WHERE t.status <> 'done'),
			       COUNT(*) FILTER (WHERE t.status = 'done')
			FROM projects p
			JOIN departments d ON d.id = p.department_id
			LEFT JOIN tasks t ON t.project_id = p.id
			  AND t.created_at >= COALESCE($1, t.created_at)
			  AND t.created_at <= COALESCE($2, t.created_at)
			WHERE ($3::uuid IS NULL OR p.department_id = $3)
			  AND ($4::uuid IS NULL OR p.id = $4)
			GROUP BY p.name, d.name
			ORDER BY p.name
		`,
	},
	domain.ReportTypeDepartment: {
		title:   "Department Report",
		headers: []string{"Department", "Employees", "Projects"},
		sql: `
			SELECT d.name,
			       (SELECT COUNT(*) FROM employees e WHERE e.department_id = d.id),
			       (SELECT COUNT(*) FROM projects p WHERE p.department_id = d.id
			          AND p.created_at >= COALESCE($1, p.created_at)
			          AND p.created_at <= COALESCE($2, p.created_at)
			          AND ($4::uuid IS NULL OR p.id = $4))
			FROM departments d
			WHERE ($3::uuid IS NULL OR d.id = $3)
			ORDER BY d.name
		`,
	},
	domain.ReportTypeAudit: {
		title:   "Audit Report",
		headers: []string{"When", "Actor", "Action", "Entity"},
		sql: `
			SELECT a.occurred_at, a.actor_name, a.action, a.entity
			FROM audit_log a
			WHERE a.occurred_at >= COALESCE($1, a.occurred_at)
			  AND a.occurred_at <= COALESCE($2, a.occurred_at)
			  AND ($3::uuid IS NULL OR a.department_id = $3)
			  AND ($4::uuid IS NULL OR a.project_id = $4)
			ORDER BY a.occurred_at DESC
		`,
	},
	domain.ReportTypeEstimateAccuracy: {
		title:   "Estimate Accuracy Report",
		headers: []string{"Task", "Estimated Hours", "Actual Hours"},
		sql: `
			SELECT t.title, t.estimated_hours, t.actual_hours
			FROM tasks t
			JOIN projects p ON p.id = t.project_id
			WHERE t.status = 'done'
			  AND t.actual_hours IS NOT NULL
			  AND t.created_at >= COALESCE($1, t.created_at)
			  AND t.created_at <= COALESCE($2, t.created_at)
			  AND ($3::uuid IS NULL OR p.department_id = $3)
			  AND ($4::uuid IS NULL OR t.project_id = $4)
			ORDER BY t.title
		`,
	},
}

// FetchReportRows runs the query for the given report type and returns
// its rows as strings ready for encoding or interactive rendering.
func (f *RowFetcher) FetchReportRows(ctx context.Context, reportType domain.ReportType, params domain.ReportParams) (*report.Table, error) {
	q, ok := reportQueries[reportType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidReportType, reportType)
	}

	rows, err := f.db.QueryContext(ctx, q.sql,
		nullableTime(params.From),
		nullableTime(params.To),
		params.Scope.DepartmentID,
		params.Scope.ProjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	table := &report.Table{
		Title:   q.title,
		Headers: q.headers,
	}

	values := make([]any, len(q.headers))
	scanTargets := make([]any, len(q.headers))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatCell(v)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read report rows: %w", err)
	}

	return table, nil
}

// nullableTime converts the zero time to a SQL NULL so COALESCE leaves
// the bound unrestricted.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// formatCell renders one scanned value for tabular output.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
