package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"gradcafe_scraper/internal/models"
)

// Condition is one SQL predicate with its bind arguments. Column names come
// from code, never from user input.
type Condition struct {
	SQL  string
	Args []any
}

// Eq matches column = value.
func Eq(column string, value any) Condition {
	return Condition{SQL: column + " = ?", Args: []any{value}}
}

// NotNull matches rows where expr is set.
func NotNull(expr string) Condition {
	return Condition{SQL: expr + " IS NOT NULL"}
}

// Like matches column against a case-insensitive LIKE pattern.
func Like(column, pattern string) Condition {
	return Condition{SQL: "LOWER(" + column + ") LIKE LOWER(?)", Args: []any{pattern}}
}

// AnyLike matches when column is like at least one of patterns.
func AnyLike(column string, patterns ...string) Condition {
	parts := make([]string, 0, len(patterns))
	args := make([]any, 0, len(patterns))
	for _, p := range patterns {
		parts = append(parts, "LOWER("+column+") LIKE LOWER(?)")
		args = append(args, p)
	}
	return Condition{SQL: "(" + strings.Join(parts, " OR ") + ")", Args: args}
}

// Coalesce prefers the first non-null of the columns.
func Coalesce(columns ...string) string {
	return "COALESCE(" + strings.Join(columns, ", ") + ")"
}

// GroupAverage is the mean of one column within a group.
type GroupAverage struct {
	Group   string
	Average *float64
}

// AnalyticsRepository answers the aggregate questions shown on the dashboard
// and caches their latest answers.
type AnalyticsRepository interface {
	Count(ctx context.Context, conds ...Condition) (int64, error)
	Average(ctx context.Context, column string, conds ...Condition) (*float64, error)
	Percent(ctx context.Context, match Condition, conds ...Condition) (*float64, error)
	AverageByGroup(ctx context.Context, column, group string, conds ...Condition) ([]GroupAverage, error)
	SaveAnalysis(ctx context.Context, data string) error
	LatestAnalysis(ctx context.Context) (*models.AnalysisSnapshot, error)
}

func (r *GormApplicantRepository) scoped(ctx context.Context, conds []Condition) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Applicant{})
	for _, c := range conds {
		q = q.Where(c.SQL, c.Args...)
	}
	return q
}

func (r *GormApplicantRepository) Count(ctx context.Context, conds ...Condition) (int64, error) {
	var n int64
	if err := r.scoped(ctx, conds).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count applicants: %w", err)
	}
	return n, nil
}

// Average returns nil when no row has a value for column.
func (r *GormApplicantRepository) Average(ctx context.Context, column string, conds ...Condition) (*float64, error) {
	var v sql.NullFloat64
	if err := r.scoped(ctx, conds).Select("AVG(" + column + ")").Row().Scan(&v); err != nil {
		return nil, fmt.Errorf("average %s: %w", column, err)
	}
	return nullable(v), nil
}

// Percent returns the share of rows matching match among the rows selected by
// conds, in percent. It is nil when conds select nothing.
func (r *GormApplicantRepository) Percent(ctx context.Context, match Condition, conds ...Condition) (*float64, error) {
	expr := "100.0 * SUM(CASE WHEN " + match.SQL + " THEN 1 ELSE 0 END) / NULLIF(COUNT(*), 0)"
	var v sql.NullFloat64
	if err := r.scoped(ctx, conds).Select(expr, match.Args...).Row().Scan(&v); err != nil {
		return nil, fmt.Errorf("percent: %w", err)
	}
	return nullable(v), nil
}

// AverageByGroup returns one average per non-null group value, ordered by group.
func (r *GormApplicantRepository) AverageByGroup(ctx context.Context, column, group string, conds ...Condition) ([]GroupAverage, error) {
	conds = append(conds, NotNull(group))
	rows, err := r.scoped(ctx, conds).
		Select(group + ", AVG(" + column + ")").
		Group(group).
		Order(group).
		Rows()
	if err != nil {
		return nil, fmt.Errorf("average %s by %s: %w", column, group, err)
	}
	defer rows.Close()

	var out []GroupAverage
	for rows.Next() {
		var g string
		var v sql.NullFloat64
		if err := rows.Scan(&g, &v); err != nil {
			return nil, fmt.Errorf("scan group average: %w", err)
		}
		out = append(out, GroupAverage{Group: g, Average: nullable(v)})
	}
	return out, rows.Err()
}

func (r *GormApplicantRepository) SaveAnalysis(ctx context.Context, data string) error {
	snap := models.AnalysisSnapshot{Data: data}
	if err := r.db.WithContext(ctx).Create(&snap).Error; err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// LatestAnalysis returns the newest snapshot, or nil when none was saved.
func (r *GormApplicantRepository) LatestAnalysis(ctx context.Context) (*models.AnalysisSnapshot, error) {
	var snap models.AnalysisSnapshot
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read analysis: %w", err)
	}
	return &snap, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
