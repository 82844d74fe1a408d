package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealfinder/models"
)

//go:embed postgres_schema.sql
var postgresSchema string

// PostgresStore keeps the qualified-property cache and fetch records in
// Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// Migrate creates the tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// =============================================================================
// Qualified properties
// =============================================================================

func (s *PostgresStore) FindQualified(ctx context.Context, q models.CacheQuery) ([]models.QualifiedProperty, error) {
	query, args := findQuery(q, dollar, q.Since)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find qualified: %w", err)
	}
	defer rows.Close()

	var props []models.QualifiedProperty
	for rows.Next() {
		var p models.QualifiedProperty
		if err := rows.Scan(propertyDest(&p, &p.Amenities, &p.Images, &p.CreatedAt)...); err != nil {
			return nil, fmt.Errorf("scan qualified: %w", err)
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

// SaveQualified upserts the properties in one transaction and returns the
// stored copies with their persisted ids.
func (s *PostgresStore) SaveQualified(ctx context.Context, fetchRecordID string, props []models.QualifiedProperty) ([]models.QualifiedProperty, error) {
	if len(props) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now().UTC()
	query := insertPropertyQuery(dollar)
	saved := make([]models.QualifiedProperty, 0, len(props))
	for _, p := range props {
		stamp(&p, fetchRecordID, now, uuid.NewString)
		values := propertyValues(&p, pgList, pgTime)
		if err := tx.QueryRow(ctx, query, values...).Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("save %s: %w", p.ListingID, err)
		}
		saved = append(saved, p)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// =============================================================================
// Fetch records
// =============================================================================

func (s *PostgresStore) CreateFetchRecord(ctx context.Context, rec *models.FetchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.now()
	}
	request, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	query := `INSERT INTO fetch_jobs (` + fetchColumns + `, threshold_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.JobID, rec.Source, request, rec.Neighborhood, string(rec.PropertyType),
		string(rec.Status), rec.StartedAt.UTC(), rec.ThresholdUsed)
	if err != nil {
		return fmt.Errorf("create fetch record: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateFetchRecord(ctx context.Context, rec *models.FetchRecord) error {
	tag, err := s.pool.Exec(ctx, fetchUpdateQuery(dollar), fetchUpdateValues(rec, pgTime)...)
	if err != nil {
		return fmt.Errorf("update fetch record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update fetch record %s: %w", rec.ID, pgx.ErrNoRows)
	}
	return nil
}

func (s *PostgresStore) CacheStats(ctx context.Context) (models.CacheStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE used_cache_only),
			COALESCE(AVG(processing_duration_ms), 0)
		FROM fetch_jobs WHERE status = 'completed'`

	var stats models.CacheStats
	err := s.pool.QueryRow(ctx, query).Scan(&stats.TotalRequests, &stats.CacheOnlyRequests, &stats.AvgProcessingTimeMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	if stats.TotalRequests > 0 {
		stats.CacheHitRate = float64(stats.CacheOnlyRequests) / float64(stats.TotalRequests)
	}
	return stats, nil
}

func pgList(v []string) any {
	if v == nil {
		return []string{}
	}
	return v
}

func pgTime(t time.Time) any {
	return t.UTC()
}
