package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/harvest-cli/internal/db"
	"github.com/sells-group/harvest-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Statements on the harvest loop's hot path, referenced both by the
// methods below and by the per-connection prepare in NewPostgres.
const (
	claimIdentifierSQL = `UPDATE identifiers
	 SET status = $2, attempts = attempts + 1, updated_at = $3
	 WHERE (harvest_id, url) IN (
		SELECT harvest_id, url FROM identifiers
		WHERE harvest_id = $1 AND status = $4
		ORDER BY discovered_at, url
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	 )
	 RETURNING url, attempts, last_error`

	insertRecordSQL = `INSERT INTO records (harvest_id, source_url, name, category, description, address, phone, email, website, incomplete, harvested_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	 ON CONFLICT (harvest_id, source_url) DO NOTHING`

	finishIdentifierSQL = `UPDATE identifiers SET status = $1, last_error = '', updated_at = $2 WHERE harvest_id = $3 AND url = $4`

	failIdentifierSQL = `UPDATE identifiers SET status = $1, last_error = $2, updated_at = $3 WHERE harvest_id = $4 AND url = $5`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"claim_identifier":  claimIdentifierSQL,
	"insert_record":     insertRecordSQL,
	"finish_identifier": finishIdentifierSQL,
	"fail_identifier":   failIdentifierSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS harvests (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	root_url   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_harvests_root_url ON harvests(root_url, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_harvests_status ON harvests(status);

CREATE TABLE IF NOT EXISTS identifiers (
	harvest_id    TEXT NOT NULL REFERENCES harvests(id),
	url           TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	discovered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (harvest_id, url)
);

CREATE INDEX IF NOT EXISTS idx_identifiers_claim ON identifiers(harvest_id, status);

CREATE TABLE IF NOT EXISTS records (
	seq          BIGSERIAL PRIMARY KEY,
	harvest_id   TEXT NOT NULL REFERENCES harvests(id),
	source_url   TEXT NOT NULL,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	incomplete   BOOLEAN NOT NULL DEFAULT false,
	harvested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (harvest_id, source_url)
);

CREATE INDEX IF NOT EXISTS idx_records_harvest ON records(harvest_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateHarvest(ctx context.Context, rootURL string) (*model.Harvest, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO harvests (id, root_url, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, rootURL, string(model.HarvestStatusRunning), now, now,
	)
	if err != nil {
		return nil, writeErr("create harvest", eris.Wrap(err, "postgres: insert harvest"))
	}

	return &model.Harvest{
		ID:        id,
		RootURL:   rootURL,
		Status:    model.HarvestStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetHarvest(ctx context.Context, harvestID string) (*model.Harvest, error) {
	var h model.Harvest
	err := s.pool.QueryRow(ctx,
		`SELECT id, root_url, status, created_at, updated_at FROM harvests WHERE id = $1`,
		harvestID,
	).Scan(&h.ID, &h.RootURL, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "harvest")
		}
		return nil, eris.Wrapf(err, "postgres: get harvest %s", harvestID)
	}
	return &h, nil
}

func (s *PostgresStore) LatestHarvest(ctx context.Context, rootURL string) (*model.Harvest, error) {
	var h model.Harvest
	err := s.pool.QueryRow(ctx,
		`SELECT id, root_url, status, created_at, updated_at FROM harvests
		 WHERE root_url = $1 ORDER BY created_at DESC LIMIT 1`,
		rootURL,
	).Scan(&h.ID, &h.RootURL, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest harvest")
	}
	return &h, nil
}

func (s *PostgresStore) ListHarvests(ctx context.Context, filter HarvestFilter) ([]model.Harvest, error) {
	query := `SELECT id, root_url, status, created_at, updated_at FROM harvests WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.RootURL != "" {
		query += fmt.Sprintf(` AND root_url = $%d`, argIdx)
		args = append(args, filter.RootURL)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list harvests")
	}
	defer rows.Close()

	var harvests []model.Harvest
	for rows.Next() {
		var h model.Harvest
		if err := rows.Scan(&h.ID, &h.RootURL, &h.Status, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan harvest")
		}
		harvests = append(harvests, h)
	}
	return harvests, eris.Wrap(rows.Err(), "postgres: list harvests iterate")
}

func (s *PostgresStore) UpdateHarvestStatus(ctx context.Context, harvestID string, status model.HarvestStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE harvests SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), harvestID,
	)
	if err != nil {
		return writeErr("update harvest status", eris.Wrapf(err, "postgres: update harvest %s", harvestID))
	}
	if tag.RowsAffected() == 0 {
		return writeErr("update harvest status", eris.Errorf("harvest not found: %s", harvestID))
	}
	return nil
}

func (s *PostgresStore) AddIdentifiers(ctx context.Context, harvestID string, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(urls))
	for _, u := range urls {
		rows = append(rows, []any{harvestID, u, string(model.IdentifierPending), 0, "", now, now})
	}

	added, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "identifiers",
		Columns:      []string{"harvest_id", "url", "status", "attempts", "last_error", "discovered_at", "updated_at"},
		ConflictKeys: []string{"harvest_id", "url"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, writeErr("add identifiers", err)
	}
	return int(added), nil
}

func (s *PostgresStore) ListIdentifiers(ctx context.Context, harvestID string, filter IdentifierFilter) ([]model.Identifier, error) {
	query := `SELECT harvest_id, url, status, attempts, last_error, discovered_at, updated_at
	          FROM identifiers WHERE harvest_id = $1`
	args := []any{harvestID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY discovered_at, url`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list identifiers")
	}
	defer rows.Close()

	var idents []model.Identifier
	for rows.Next() {
		var ident model.Identifier
		if err := rows.Scan(&ident.HarvestID, &ident.URL, &ident.Status, &ident.Attempts,
			&ident.LastError, &ident.DiscoveredAt, &ident.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identifier")
		}
		idents = append(idents, ident)
	}
	return idents, eris.Wrap(rows.Err(), "postgres: list identifiers iterate")
}

func (s *PostgresStore) ClaimIdentifier(ctx context.Context, harvestID string) (*model.Identifier, error) {
	now := time.Now().UTC()

	var ident model.Identifier
	err := s.pool.QueryRow(ctx, claimIdentifierSQL,
		harvestID, string(model.IdentifierInProgress), now, string(model.IdentifierPending),
	).Scan(&ident.URL, &ident.Attempts, &ident.LastError)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPending
		}
		return nil, writeErr("claim identifier", eris.Wrap(err, "postgres: claim identifier"))
	}

	ident.HarvestID = harvestID
	ident.Status = model.IdentifierInProgress
	ident.UpdatedAt = now
	return &ident, nil
}

// MarkDone records the extracted record and retires its identifier in one
// transaction, so a crash can never leave a record without a done marker.
func (s *PostgresStore) MarkDone(ctx context.Context, harvestID, url string, rec model.BusinessRecord) error {
	now := time.Now().UTC()
	harvestedAt := rec.HarvestedAt
	if harvestedAt.IsZero() {
		harvestedAt = now
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return writeErr("mark done", eris.Wrap(err, "postgres: begin tx"))
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertRecordSQL,
		harvestID, rec.SourceURL, rec.Name, rec.Category, rec.Description, rec.Address,
		rec.Phone, rec.Email, rec.Website, rec.Incomplete, harvestedAt,
	)
	if err != nil {
		return writeErr("mark done", eris.Wrapf(err, "postgres: insert record %s", rec.SourceURL))
	}

	tag, err := tx.Exec(ctx, finishIdentifierSQL,
		string(model.IdentifierDone), now, harvestID, url,
	)
	if err != nil {
		return writeErr("mark done", eris.Wrapf(err, "postgres: update identifier %s", url))
	}
	if tag.RowsAffected() == 0 {
		return writeErr("mark done", eris.Errorf("identifier not found: %s", url))
	}

	if err := tx.Commit(ctx); err != nil {
		return writeErr("mark done", eris.Wrap(err, "postgres: commit"))
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, harvestID, url, cause string) error {
	tag, err := s.pool.Exec(ctx, failIdentifierSQL,
		string(model.IdentifierFailed), cause, time.Now().UTC(), harvestID, url,
	)
	if err != nil {
		return writeErr("mark failed", eris.Wrapf(err, "postgres: update identifier %s", url))
	}
	if tag.RowsAffected() == 0 {
		return writeErr("mark failed", eris.Errorf("identifier not found: %s", url))
	}
	return nil
}

func (s *PostgresStore) ReleaseStale(ctx context.Context, harvestID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identifiers SET status = $1, updated_at = $2 WHERE harvest_id = $3 AND status = $4`,
		string(model.IdentifierPending), time.Now().UTC(), harvestID, string(model.IdentifierInProgress),
	)
	if err != nil {
		return 0, writeErr("release stale", eris.Wrap(err, "postgres: release stale"))
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ResetFailed(ctx context.Context, harvestID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identifiers SET status = $1, updated_at = $2 WHERE harvest_id = $3 AND status = $4`,
		string(model.IdentifierPending), time.Now().UTC(), harvestID, string(model.IdentifierFailed),
	)
	if err != nil {
		return 0, writeErr("reset failed", eris.Wrap(err, "postgres: reset failed"))
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, harvestID string) ([]model.BusinessRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_url, name, category, description, address, phone, email, website, incomplete, harvested_at
		 FROM records WHERE harvest_id = $1 ORDER BY seq`,
		harvestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var recs []model.BusinessRecord
	for rows.Next() {
		var r model.BusinessRecord
		if err := rows.Scan(&r.SourceURL, &r.Name, &r.Category, &r.Description, &r.Address,
			&r.Phone, &r.Email, &r.Website, &r.Incomplete, &r.HarvestedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) Snapshot(ctx context.Context, harvestID string) (*model.Snapshot, error) {
	h, err := s.GetHarvest(ctx, harvestID)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		HarvestID:   h.ID,
		RootURL:     h.RootURL,
		Status:      h.Status,
		Categories:  map[string]int{},
		CollectedAt: time.Now().UTC(),
	}

	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM identifiers WHERE harvest_id = $1 GROUP BY status`,
		harvestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count identifiers")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identifier count")
		}
		snap.Discovered += n
		switch model.IdentifierStatus(status) {
		case model.IdentifierPending:
			snap.Pending = n
		case model.IdentifierInProgress:
			snap.InProgress = n
		case model.IdentifierDone:
			snap.Done = n
		case model.IdentifierFailed:
			snap.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: count identifiers iterate")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE phone <> ''),
		        COUNT(*) FILTER (WHERE email <> ''),
		        COUNT(*) FILTER (WHERE website <> ''),
		        COUNT(*) FILTER (WHERE address <> ''),
		        COUNT(*) FILTER (WHERE incomplete)
		 FROM records WHERE harvest_id = $1`,
		harvestID,
	).Scan(&snap.Records, &snap.WithPhone, &snap.WithEmail, &snap.WithWebsite, &snap.WithAddress, &snap.Incomplete)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count records")
	}

	catRows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM records WHERE harvest_id = $1 AND category <> '' GROUP BY category`,
		harvestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count categories")
	}
	defer catRows.Close()
	for catRows.Next() {
		var cat string
		var n int
		if err := catRows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category count")
		}
		snap.Categories[cat] = n
	}
	return snap, eris.Wrap(catRows.Err(), "postgres: count categories iterate")
}
