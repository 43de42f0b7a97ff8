package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"DomainScore/internal/domain"
	"DomainScore/internal/ports"
)

const (
	table = "domains"

	defaultListLimit = 50
	maxListLimit     = 500
)

// ErrNotFound is returned by Get when no row exists for the domain.
var ErrNotFound = ports.ErrNotFound

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var columns = []string{
	"domain", "status", "traffic_score", "estimated_traffic",
	"archive_snapshots", "archive_recent", "last_seen",
	"indexed_pages", "social_mentions", "web_presence", "mail_score",
	"has_redirect", "redirect_url", "is_parked",
	"has_website", "has_nameservers", "last_checked",
}

// sortable maps API sort keys to columns.
var sortable = map[string]string{
	"domain":            "domain",
	"status":            "status",
	"traffic_score":     "traffic_score",
	"estimated_traffic": "estimated_traffic",
	"archive_snapshots": "archive_snapshots",
	"indexed_pages":     "indexed_pages",
	"social_mentions":   "social_mentions",
	"mail_score":        "mail_score",
	"last_checked":      "last_checked",
}

// Querier is the subset of pgxpool.Pool the repository uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists domain analyses into Postgres.
type PostgresRepository struct {
	db Querier
}

var _ ports.AnalysisRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a pool (or any Querier).
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or replaces the row for the analysis domain.
func (r *PostgresRepository) Upsert(ctx context.Context, a domain.DomainAnalysis) error {
	query, args, err := buildUpsert(a)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert domain %s: %w", a.Domain, err)
	}
	return nil
}

// Get returns the stored analysis or ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, name string) (domain.DomainAnalysis, error) {
	query, args, err := psql.Select(columns...).From(table).Where(sq.Eq{"domain": name}).ToSql()
	if err != nil {
		return domain.DomainAnalysis{}, fmt.Errorf("build select: %w", err)
	}

	a, err := scanAnalysis(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DomainAnalysis{}, ErrNotFound
	}
	if err != nil {
		return domain.DomainAnalysis{}, fmt.Errorf("get domain %s: %w", name, err)
	}
	return a, nil
}

// List returns analyses matching filter.
func (r *PostgresRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.DomainAnalysis, error) {
	query, args, err := buildList(filter)
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	result := make([]domain.DomainAnalysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Pending returns up to limit domains awaiting their first analysis, oldest first.
func (r *PostgresRepository) Pending(ctx context.Context, limit int) ([]string, error) {
	query, args, err := psql.Select("domain").From(table).
		Where(sq.Eq{"status": string(domain.StatusPending)}).
		OrderBy("created_at ASC", "domain ASC").
		Limit(uint64(max(1, limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect pending: %w", err)
	}
	return names, nil
}

// EnqueuePending inserts names as pending unless already known and reports
// how many were new.
func (r *PostgresRepository) EnqueuePending(ctx context.Context, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}
	query, args, err := buildEnqueue(names)
	if err != nil {
		return 0, fmt.Errorf("build enqueue: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("enqueue domains: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func buildUpsert(a domain.DomainAnalysis) (string, []any, error) {
	updates := make([]string, 0, len(columns))
	for _, col := range columns[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	updates = append(updates, "updated_at = NOW()")

	return psql.Insert(table).
		Columns(columns...).
		Values(
			a.Domain, string(a.Status), a.TrafficScore, a.EstimatedTraffic,
			a.ArchiveSnapshots, a.ArchiveRecent, a.LastSeen,
			a.IndexedPages, a.SocialMentions, a.WebPresence, a.MailScore,
			a.HasRedirect, a.RedirectURL, a.IsParked,
			a.HasWebsite, a.HasNameservers, a.LastChecked,
		).
		Suffix("ON CONFLICT (domain) DO UPDATE SET " + strings.Join(updates, ", ")).
		ToSql()
}

func buildList(f ports.ListFilter) (string, []any, error) {
	b := psql.Select(columns...).From(table)

	if q := strings.TrimSpace(f.Query); q != "" {
		b = b.Where(sq.ILike{"domain": "%" + escapeLike(strings.ToLower(q)) + "%"})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.MinScore > 0 {
		b = b.Where(sq.GtOrEq{"traffic_score": f.MinScore})
	}

	col, ok := sortable[f.SortBy]
	if !ok {
		col = "traffic_score"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	order := []string{col + " " + dir}
	if col != "domain" {
		order = append(order, "domain ASC")
	}
	b = b.OrderBy(order...)

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	b = b.Limit(uint64(min(limit, maxListLimit)))
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	return b.ToSql()
}

func buildEnqueue(names []string) (string, []any, error) {
	b := psql.Insert(table).Columns("domain", "status")
	for _, name := range names {
		b = b.Values(name, string(domain.StatusPending))
	}
	return b.Suffix("ON CONFLICT (domain) DO NOTHING").ToSql()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanAnalysis(row pgx.Row) (domain.DomainAnalysis, error) {
	var (
		a           domain.DomainAnalysis
		status      string
		lastChecked *time.Time
	)
	err := row.Scan(
		&a.Domain, &status, &a.TrafficScore, &a.EstimatedTraffic,
		&a.ArchiveSnapshots, &a.ArchiveRecent, &a.LastSeen,
		&a.IndexedPages, &a.SocialMentions, &a.WebPresence, &a.MailScore,
		&a.HasRedirect, &a.RedirectURL, &a.IsParked,
		&a.HasWebsite, &a.HasNameservers, &lastChecked,
	)
	if err != nil {
		return domain.DomainAnalysis{}, err
	}
	a.Status = domain.Status(status)
	if lastChecked != nil {
		a.LastChecked = lastChecked.UTC()
	}
	return a, nil
}
