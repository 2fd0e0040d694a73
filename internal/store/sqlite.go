package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/harvest-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS harvests (
	id         TEXT PRIMARY KEY,
	root_url   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_harvests_root_url ON harvests(root_url);
CREATE INDEX IF NOT EXISTS idx_harvests_status ON harvests(status);

CREATE TABLE IF NOT EXISTS identifiers (
	harvest_id    TEXT NOT NULL REFERENCES harvests(id),
	url           TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	discovered_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (harvest_id, url)
);

CREATE INDEX IF NOT EXISTS idx_identifiers_claim ON identifiers(harvest_id, status);

CREATE TABLE IF NOT EXISTS records (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	harvest_id   TEXT NOT NULL REFERENCES harvests(id),
	source_url   TEXT NOT NULL,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	incomplete   INTEGER NOT NULL DEFAULT 0,
	harvested_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (harvest_id, source_url)
);

CREATE INDEX IF NOT EXISTS idx_records_harvest ON records(harvest_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateHarvest(ctx context.Context, rootURL string) (*model.Harvest, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO harvests (id, root_url, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, rootURL, string(model.HarvestStatusRunning), now, now,
	)
	if err != nil {
		return nil, writeErr("create harvest", eris.Wrap(err, "sqlite: insert harvest"))
	}

	return &model.Harvest{
		ID:        id,
		RootURL:   rootURL,
		Status:    model.HarvestStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetHarvest(ctx context.Context, harvestID string) (*model.Harvest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, root_url, status, created_at, updated_at FROM harvests WHERE id = ?`,
		harvestID,
	)
	return scanHarvest(row)
}

func (s *SQLiteStore) LatestHarvest(ctx context.Context, rootURL string) (*model.Harvest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, root_url, status, created_at, updated_at FROM harvests
		 WHERE root_url = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		rootURL,
	)

	var h model.Harvest
	err := row.Scan(&h.ID, &h.RootURL, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest harvest")
	}
	return &h, nil
}

func (s *SQLiteStore) ListHarvests(ctx context.Context, filter HarvestFilter) ([]model.Harvest, error) {
	query := `SELECT id, root_url, status, created_at, updated_at FROM harvests WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.RootURL != "" {
		query += ` AND root_url = ?`
		args = append(args, filter.RootURL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list harvests")
	}
	defer rows.Close()

	var harvests []model.Harvest
	for rows.Next() {
		h, err := scanHarvest(rows)
		if err != nil {
			return nil, err
		}
		harvests = append(harvests, *h)
	}
	return harvests, eris.Wrap(rows.Err(), "sqlite: list harvests iterate")
}

func (s *SQLiteStore) UpdateHarvestStatus(ctx context.Context, harvestID string, status model.HarvestStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE harvests SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), harvestID,
	)
	if err != nil {
		return writeErr("update harvest status", eris.Wrapf(err, "sqlite: update harvest %s", harvestID))
	}
	return writeErr("update harvest status", checkRowsAffected(res, "harvest", harvestID))
}

func (s *SQLiteStore) AddIdentifiers(ctx context.Context, harvestID string, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, writeErr("add identifiers", eris.Wrap(err, "sqlite: begin tx"))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO identifiers (harvest_id, url, status, discovered_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (harvest_id, url) DO NOTHING`,
	)
	if err != nil {
		return 0, writeErr("add identifiers", eris.Wrap(err, "sqlite: prepare insert"))
	}
	defer stmt.Close()

	now := time.Now().UTC()
	added := 0
	for _, u := range urls {
		res, err := stmt.ExecContext(ctx, harvestID, u, string(model.IdentifierPending), now, now)
		if err != nil {
			return 0, writeErr("add identifiers", eris.Wrapf(err, "sqlite: insert identifier %s", u))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, writeErr("add identifiers", eris.Wrap(err, "sqlite: rows affected"))
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, writeErr("add identifiers", eris.Wrap(err, "sqlite: commit"))
	}
	return added, nil
}

func (s *SQLiteStore) ListIdentifiers(ctx context.Context, harvestID string, filter IdentifierFilter) ([]model.Identifier, error) {
	query := `SELECT harvest_id, url, status, attempts, last_error, discovered_at, updated_at
	          FROM identifiers WHERE harvest_id = ?`
	args := []any{harvestID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY rowid`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list identifiers")
	}
	defer rows.Close()

	var idents []model.Identifier
	for rows.Next() {
		var ident model.Identifier
		if err := rows.Scan(&ident.HarvestID, &ident.URL, &ident.Status, &ident.Attempts,
			&ident.LastError, &ident.DiscoveredAt, &ident.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identifier")
		}
		idents = append(idents, ident)
	}
	return idents, eris.Wrap(rows.Err(), "sqlite: list identifiers iterate")
}

func (s *SQLiteStore) ClaimIdentifier(ctx context.Context, harvestID string) (*model.Identifier, error) {
	now := time.Now().UTC()

	// Single atomic statement: concurrent workers can never claim the
	// same row.
	row := s.db.QueryRowContext(ctx,
		`UPDATE identifiers
		 SET status = ?, attempts = attempts + 1, updated_at = ?
		 WHERE harvest_id = ? AND url = (
			SELECT url FROM identifiers
			WHERE harvest_id = ? AND status = ? ORDER BY rowid LIMIT 1
		 )
		 RETURNING url, attempts, last_error`,
		string(model.IdentifierInProgress), now,
		harvestID, harvestID, string(model.IdentifierPending),
	)

	var ident model.Identifier
	err := row.Scan(&ident.URL, &ident.Attempts, &ident.LastError)
	if err == sql.ErrNoRows {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, writeErr("claim identifier", eris.Wrap(err, "sqlite: claim identifier"))
	}

	ident.HarvestID = harvestID
	ident.Status = model.IdentifierInProgress
	ident.UpdatedAt = now
	return &ident, nil
}

// MarkDone records the extracted record and retires its identifier in one
// transaction, so a crash can never leave a record without a done marker.
func (s *SQLiteStore) MarkDone(ctx context.Context, harvestID, url string, rec model.BusinessRecord) error {
	now := time.Now().UTC()
	harvestedAt := rec.HarvestedAt
	if harvestedAt.IsZero() {
		harvestedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("mark done", eris.Wrap(err, "sqlite: begin tx"))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (harvest_id, source_url, name, category, description, address, phone, email, website, incomplete, harvested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (harvest_id, source_url) DO NOTHING`,
		harvestID, rec.SourceURL, rec.Name, rec.Category, rec.Description, rec.Address,
		rec.Phone, rec.Email, rec.Website, rec.Incomplete, harvestedAt,
	)
	if err != nil {
		return writeErr("mark done", eris.Wrapf(err, "sqlite: insert record %s", rec.SourceURL))
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE identifiers SET status = ?, last_error = '', updated_at = ? WHERE harvest_id = ? AND url = ?`,
		string(model.IdentifierDone), now, harvestID, url,
	)
	if err != nil {
		return writeErr("mark done", eris.Wrapf(err, "sqlite: update identifier %s", url))
	}
	if err := checkRowsAffected(res, "identifier", url); err != nil {
		return writeErr("mark done", err)
	}

	if err := tx.Commit(); err != nil {
		return writeErr("mark done", eris.Wrap(err, "sqlite: commit"))
	}
	return nil
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, harvestID, url, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identifiers SET status = ?, last_error = ?, updated_at = ? WHERE harvest_id = ? AND url = ?`,
		string(model.IdentifierFailed), cause, time.Now().UTC(), harvestID, url,
	)
	if err != nil {
		return writeErr("mark failed", eris.Wrapf(err, "sqlite: update identifier %s", url))
	}
	return writeErr("mark failed", checkRowsAffected(res, "identifier", url))
}

func (s *SQLiteStore) ReleaseStale(ctx context.Context, harvestID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identifiers SET status = ?, updated_at = ? WHERE harvest_id = ? AND status = ?`,
		string(model.IdentifierPending), time.Now().UTC(), harvestID, string(model.IdentifierInProgress),
	)
	if err != nil {
		return 0, writeErr("release stale", eris.Wrap(err, "sqlite: release stale"))
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ResetFailed(ctx context.Context, harvestID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identifiers SET status = ?, updated_at = ? WHERE harvest_id = ? AND status = ?`,
		string(model.IdentifierPending), time.Now().UTC(), harvestID, string(model.IdentifierFailed),
	)
	if err != nil {
		return 0, writeErr("reset failed", eris.Wrap(err, "sqlite: reset failed"))
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ListRecords(ctx context.Context, harvestID string) ([]model.BusinessRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_url, name, category, description, address, phone, email, website, incomplete, harvested_at
		 FROM records WHERE harvest_id = ? ORDER BY seq`,
		harvestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var recs []model.BusinessRecord
	for rows.Next() {
		var r model.BusinessRecord
		if err := rows.Scan(&r.SourceURL, &r.Name, &r.Category, &r.Description, &r.Address,
			&r.Phone, &r.Email, &r.Website, &r.Incomplete, &r.HarvestedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

// Snapshot aggregates harvest progress in one read. Counts come straight
// from the identifier and record tables, so the view stays accurate while
// a harvest loop is writing.
func (s *SQLiteStore) Snapshot(ctx context.Context, harvestID string) (*model.Snapshot, error) {
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

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM identifiers WHERE harvest_id = ? GROUP BY status`,
		harvestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count identifiers")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identifier count")
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
		return nil, eris.Wrap(err, "sqlite: count identifiers iterate")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(phone <> ''), 0),
		        COALESCE(SUM(email <> ''), 0),
		        COALESCE(SUM(website <> ''), 0),
		        COALESCE(SUM(address <> ''), 0),
		        COALESCE(SUM(incomplete), 0)
		 FROM records WHERE harvest_id = ?`,
		harvestID,
	).Scan(&snap.Records, &snap.WithPhone, &snap.WithEmail, &snap.WithWebsite, &snap.WithAddress, &snap.Incomplete)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count records")
	}

	catRows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM records WHERE harvest_id = ? AND category <> '' GROUP BY category`,
		harvestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count categories")
	}
	defer catRows.Close()
	for catRows.Next() {
		var cat string
		var n int
		if err := catRows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category count")
		}
		snap.Categories[cat] = n
	}
	return snap, eris.Wrap(catRows.Err(), "sqlite: count categories iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanHarvest(row scannable) (*model.Harvest, error) {
	var h model.Harvest
	err := row.Scan(&h.ID, &h.RootURL, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "harvest")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan harvest")
	}
	return &h, nil
}
