package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"dealfinder/models"
)

// SQLiteStore implements the cache and fetch record contract on a single
// SQLite file. Times are stored as unix milliseconds and arrays as JSON.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS undervalued_properties (
		id TEXT PRIMARY KEY,
		fetch_job_id TEXT,
		listing_id TEXT NOT NULL,
		listing_type TEXT NOT NULL,
		address TEXT,
		neighborhood TEXT NOT NULL,
		borough TEXT,
		zipcode TEXT,
		bedrooms REAL,
		bathrooms REAL,
		sqft INTEGER,
		discount_percent REAL NOT NULL,
		score INTEGER,
		grade TEXT,
		reasoning TEXT,
		description TEXT,
		amenities JSON,
		images JSON,
		image_count INTEGER DEFAULT 0,
		primary_image TEXT,
		listing_url TEXT,
		built_in INTEGER,
		days_on_market INTEGER DEFAULT 0,
		status TEXT DEFAULT 'active',
		monthly_rent INTEGER,
		potential_monthly_savings INTEGER,
		annual_savings INTEGER,
		no_fee BOOLEAN DEFAULT FALSE,
		doorman_building BOOLEAN DEFAULT FALSE,
		elevator_building BOOLEAN DEFAULT FALSE,
		pet_friendly BOOLEAN DEFAULT FALSE,
		laundry_available BOOLEAN DEFAULT FALSE,
		gym_available BOOLEAN DEFAULT FALSE,
		rooftop_access BOOLEAN DEFAULT FALSE,
		price INTEGER,
		potential_savings INTEGER,
		estimated_market_price INTEGER,
		monthly_hoa INTEGER,
		monthly_tax INTEGER,
		property_type TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE (listing_type, listing_id)
	);

	CREATE TABLE IF NOT EXISTS fetch_jobs (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		source TEXT,
		request JSON,
		neighborhood TEXT,
		property_type TEXT,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		completed_at INTEGER,
		processing_duration_ms INTEGER DEFAULT 0,
		used_cache_only BOOLEAN DEFAULT FALSE,
		cache_hits INTEGER DEFAULT 0,
		cache_properties_returned INTEGER DEFAULT 0,
		streeteasy_api_calls INTEGER DEFAULT 0,
		properties_fetched INTEGER DEFAULT 0,
		properties_analyzed INTEGER DEFAULT 0,
		total_properties_found INTEGER DEFAULT 0,
		qualifying_properties_saved INTEGER DEFAULT 0,
		threshold_used INTEGER,
		threshold_lowered BOOLEAN DEFAULT FALSE,
		claude_api_calls INTEGER DEFAULT 0,
		claude_tokens_used INTEGER DEFAULT 0,
		claude_cost_usd REAL DEFAULT 0,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_undervalued_lookup ON undervalued_properties(neighborhood, listing_type, status, discount_percent);
	CREATE INDEX IF NOT EXISTS idx_fetch_jobs_job ON fetch_jobs(job_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) FindQualified(ctx context.Context, q models.CacheQuery) ([]models.QualifiedProperty, error) {
	query, args := findQuery(q, question, q.Since.UnixMilli())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find qualified: %w", err)
	}
	defer rows.Close()

	var props []models.QualifiedProperty
	for rows.Next() {
		var p models.QualifiedProperty
		var amenities, images sql.NullString
		var created int64
		if err := rows.Scan(propertyDest(&p, &amenities, &images, &created)...); err != nil {
			return nil, fmt.Errorf("scan qualified: %w", err)
		}
		if p.Amenities, err = decodeList(amenities); err != nil {
			return nil, fmt.Errorf("decode amenities for %s: %w", p.ListingID, err)
		}
		if p.Images, err = decodeList(images); err != nil {
			return nil, fmt.Errorf("decode images for %s: %w", p.ListingID, err)
		}
		p.CreatedAt = time.UnixMilli(created).UTC()
		props = append(props, p)
	}
	return props, rows.Err()
}

func (s *SQLiteStore) SaveQualified(ctx context.Context, fetchRecordID string, props []models.QualifiedProperty) ([]models.QualifiedProperty, error) {
	if len(props) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	query := insertPropertyQuery(question)
	saved := make([]models.QualifiedProperty, 0, len(props))
	for _, p := range props {
		stamp(&p, fetchRecordID, now, uuid.NewString)
		var created int64
		if err := tx.QueryRowContext(ctx, query, propertyValues(&p, sqliteList, sqliteTime)...).Scan(&p.ID, &created); err != nil {
			return nil, fmt.Errorf("save %s: %w", p.ListingID, err)
		}
		p.CreatedAt = time.UnixMilli(created).UTC()
		saved = append(saved, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

func (s *SQLiteStore) CreateFetchRecord(ctx context.Context, rec *models.FetchRecord) error {
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

	_, err = s.db.ExecContext(ctx, `INSERT INTO fetch_jobs (`+fetchColumns+`, threshold_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.JobID, rec.Source, string(request), rec.Neighborhood, string(rec.PropertyType),
		string(rec.Status), rec.StartedAt.UnixMilli(), rec.ThresholdUsed)
	if err != nil {
		return fmt.Errorf("create fetch record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateFetchRecord(ctx context.Context, rec *models.FetchRecord) error {
	res, err := s.db.ExecContext(ctx, fetchUpdateQuery(question), fetchUpdateValues(rec, sqliteTime)...)
	if err != nil {
		return fmt.Errorf("update fetch record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update fetch record %s: %w", rec.ID, sql.ErrNoRows)
	}
	return nil
}

// GetFetchRecord loads a fetch record by id. It returns nil when absent.
func (s *SQLiteStore) GetFetchRecord(ctx context.Context, id string) (*models.FetchRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, source, request, neighborhood, property_type, status, started_at, completed_at,
			processing_duration_ms, used_cache_only, cache_hits, cache_properties_returned, streeteasy_api_calls,
			properties_fetched, properties_analyzed, total_properties_found, qualifying_properties_saved,
			threshold_used, threshold_lowered, claude_api_calls, claude_tokens_used, claude_cost_usd,
			COALESCE(error_message, '')
		FROM fetch_jobs WHERE id = ?`, id)

	var rec models.FetchRecord
	var request string
	var started int64
	var completed sql.NullInt64
	err := row.Scan(&rec.ID, &rec.JobID, &rec.Source, &request, &rec.Neighborhood, &rec.PropertyType, &rec.Status,
		&started, &completed, &rec.ProcessingDurationMS, &rec.UsedCacheOnly, &rec.CacheHits, &rec.CachePropertiesReturned,
		&rec.ProviderCalls, &rec.PropertiesFetched, &rec.PropertiesAnalyzed, &rec.TotalPropertiesFound, &rec.QualifyingSaved,
		&rec.ThresholdUsed, &rec.ThresholdLowered, &rec.QualifierCalls, &rec.QualifierTokens, &rec.QualifierCostUSD,
		&rec.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(request), &rec.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	rec.StartedAt = time.UnixMilli(started).UTC()
	if completed.Valid {
		t := time.UnixMilli(completed.Int64).UTC()
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func (s *SQLiteStore) CacheStats(ctx context.Context) (models.CacheStats, error) {
	var stats models.CacheStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN used_cache_only THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(processing_duration_ms), 0)
		FROM fetch_jobs WHERE status = 'completed'`).
		Scan(&stats.TotalRequests, &stats.CacheOnlyRequests, &stats.AvgProcessingTimeMS)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	if stats.TotalRequests > 0 {
		stats.CacheHitRate = float64(stats.CacheOnlyRequests) / float64(stats.TotalRequests)
	}
	return stats, nil
}

func decodeList(v sql.NullString) ([]string, error) {
	if !v.Valid || v.String == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func sqliteList(v []string) any {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func sqliteTime(t time.Time) any {
	return t.UnixMilli()
}
