package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"leadscout/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS owners (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		mailing_address TEXT NOT NULL DEFAULT '',
		contact_attempts INTEGER NOT NULL DEFAULT 0,
		last_contact DATETIME,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS properties (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip TEXT NOT NULL DEFAULT '',
		price REAL,
		bedrooms INTEGER,
		bathrooms REAL,
		square_feet INTEGER,
		lot_size REAL,
		year_built INTEGER,
		property_type TEXT NOT NULL DEFAULT 'unknown',
		listing_date DATETIME,
		last_updated DATETIME,
		source TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		days_on_market INTEGER,
		price_reduced BOOLEAN NOT NULL DEFAULT FALSE,
		price_reduction_amount REAL,
		is_foreclosure BOOLEAN NOT NULL DEFAULT FALSE,
		is_probate BOOLEAN NOT NULL DEFAULT FALSE,
		is_vacant BOOLEAN NOT NULL DEFAULT FALSE,
		tax_delinquent BOOLEAN NOT NULL DEFAULT FALSE,
		code_violations BOOLEAN NOT NULL DEFAULT FALSE,
		absentee_owner BOOLEAN NOT NULL DEFAULT FALSE,
		distress_keywords TEXT,
		distress_score INTEGER NOT NULL DEFAULT 0,
		owner_id INTEGER REFERENCES owners(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_source_url ON properties(source, source_url);
	CREATE INDEX IF NOT EXISTS idx_properties_address ON properties(address);
	CREATE INDEX IF NOT EXISTS idx_properties_score ON properties(distress_score);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		run_uid TEXT NOT NULL,
		site_id TEXT NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		leads_found INTEGER NOT NULL DEFAULT 0,
		leads_saved INTEGER NOT NULL DEFAULT 0,
		leads_updated INTEGER NOT NULL DEFAULT 0,
		errors_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT,
		FOREIGN KEY (run_id) REFERENCES scrape_runs(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const leadSetClause = `address = ?, city = ?, state = ?, zip = ?, price = ?, bedrooms = ?,
	bathrooms = ?, square_feet = ?, lot_size = ?, year_built = ?, property_type = ?,
	listing_date = ?, last_updated = ?, source = ?, source_url = ?, status = ?,
	days_on_market = ?, price_reduced = ?, price_reduction_amount = ?, is_foreclosure = ?,
	is_probate = ?, is_vacant = ?, tax_delinquent = ?, code_violations = ?,
	absentee_owner = ?, distress_keywords = ?, distress_score = ?, owner_id = ?`

const leadPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

// SaveLeads upserts leads in batches of batchSize. Per-record failures are
// counted and skipped; a failed batch commit drops only that batch. The
// returned stats always describe what actually landed.
func (s *SQLiteStore) SaveLeads(ctx context.Context, leads []*models.Lead) (*SaveStats, error) {
	stats := &SaveStats{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var batchSaved, batchUpdated, batchCount int
	flush := func() error {
		if err := tx.Commit(); err != nil {
			log.Printf("storage: batch commit failed, %d leads dropped: %v", batchCount, err)
			stats.Errors += batchCount
		} else {
			stats.Saved += batchSaved
			stats.Updated += batchUpdated
		}
		batchSaved, batchUpdated, batchCount = 0, 0, 0
		tx, err = s.db.BeginTx(ctx, nil)
		return err
	}

	for _, lead := range leads {
		if lead.Address == "" {
			log.Printf("storage: skipping lead without address (source_url=%s)", lead.SourceURL)
			stats.Errors++
			continue
		}

		created, err := s.upsertLead(ctx, tx, lead)
		if err != nil {
			log.Printf("storage: failed to save lead %s: %v", lead.Address, err)
			stats.Errors++
			continue
		}
		if created {
			batchSaved++
		} else {
			batchUpdated++
		}

		batchCount++
		if batchCount >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("storage: final commit failed, %d leads dropped: %v", batchCount, err)
		stats.Errors += batchCount
	} else {
		stats.Saved += batchSaved
		stats.Updated += batchUpdated
	}

	return stats, nil
}

func (s *SQLiteStore) upsertLead(ctx context.Context, tx *sql.Tx, lead *models.Lead) (bool, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+leadCols+" FROM properties WHERE source = ? AND source_url = ?",
		lead.Source, lead.SourceURL)

	existing, err := scanLead(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	now := time.Now()

	if existing == nil {
		lead.LastUpdated = now
		if lead.ListingDate.IsZero() {
			lead.ListingDate = now
		}
		if err := s.attachOwner(ctx, tx, lead); err != nil {
			return false, err
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO properties (address, city, state, zip, price, bedrooms, bathrooms, square_feet, lot_size, year_built, property_type, listing_date, last_updated, source, source_url, status, days_on_market, price_reduced, price_reduction_amount, is_foreclosure, is_probate, is_vacant, tax_delinquent, code_violations, absentee_owner, distress_keywords, distress_score, owner_id) VALUES ("+leadPlaceholders+")",
			leadArgs(lead)...)
		if err != nil {
			return false, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return false, err
		}
		lead.ID = id
		return true, nil
	}

	mergeLead(existing, lead, now)
	existing.Owner = lead.Owner
	if err := s.attachOwner(ctx, tx, existing); err != nil {
		return false, err
	}
	if lead.DistressScore > existing.DistressScore {
		existing.DistressScore = lead.DistressScore
	}

	args := append(leadArgs(existing), existing.ID)
	if _, err := tx.ExecContext(ctx,
		"UPDATE properties SET "+leadSetClause+" WHERE id = ?", args...); err != nil {
		return false, err
	}

	lead.ID = existing.ID
	return false, nil
}

// attachOwner persists lead.Owner: merged into the existing owner row when
// the lead already has one, inserted otherwise.
func (s *SQLiteStore) attachOwner(ctx context.Context, tx *sql.Tx, lead *models.Lead) error {
	if lead.Owner == nil {
		return nil
	}

	if lead.OwnerID != nil {
		row := tx.QueryRowContext(ctx,
			"SELECT id, name, phone, email, mailing_address, contact_attempts, last_contact, notes FROM owners WHERE id = ?",
			*lead.OwnerID)
		existing, err := scanOwner(row)
		if err != nil {
			return err
		}
		mergeOwner(existing, lead.Owner)
		_, err = tx.ExecContext(ctx,
			"UPDATE owners SET name = ?, phone = ?, email = ?, mailing_address = ? WHERE id = ?",
			existing.Name, existing.Phone, existing.Email, existing.MailingAddress, existing.ID)
		return err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO owners (name, phone, email, mailing_address, notes) VALUES (?, ?, ?, ?, ?)",
		lead.Owner.Name, lead.Owner.Phone, lead.Owner.Email, lead.Owner.MailingAddress, lead.Owner.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	lead.Owner.ID = id
	lead.OwnerID = &id
	return nil
}

func (s *SQLiteStore) GetLeadBySource(ctx context.Context, source, sourceURL string) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+leadCols+" FROM properties WHERE source = ? AND source_url = ?",
		source, sourceURL)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return lead, err
}

func (s *SQLiteStore) QueryLeads(ctx context.Context, f Filter) ([]models.Lead, error) {
	query := "SELECT " + leadCols + " FROM properties WHERE 1=1"
	var args []any

	if f.Source != "" {
		query += " AND source = ?"
		args = append(args, f.Source)
	}
	if f.MinScore > 0 {
		query += " AND distress_score >= ?"
		args = append(args, f.MinScore)
	}

	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortColumn(f.SortBy), dir)

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

// ListLeads returns every lead ordered by id, each with its owner populated
// when one is attached.
func (s *SQLiteStore) ListLeads(ctx context.Context) ([]models.Lead, error) {
	leads, err := s.QueryLeads(ctx, Filter{SortBy: "last_updated"})
	if err != nil {
		return nil, err
	}

	for i := range leads {
		if leads[i].OwnerID == nil {
			continue
		}
		owner, err := s.GetOwner(ctx, *leads[i].OwnerID)
		if err != nil {
			return nil, err
		}
		leads[i].Owner = owner
	}
	return leads, nil
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM properties WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) UpdateLeadAddress(ctx context.Context, id int64, address string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE properties SET address = ? WHERE id = ?", address, id)
	return err
}

func (s *SQLiteStore) UpdateLeadOwner(ctx context.Context, id int64, ownerID *int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE properties SET owner_id = ? WHERE id = ?", ownerID, id)
	return err
}

func (s *SQLiteStore) UpdateScore(ctx context.Context, id int64, score int) error {
	_, err := s.db.ExecContext(ctx, "UPDATE properties SET distress_score = ? WHERE id = ?", score, id)
	return err
}

func (s *SQLiteStore) GetOwner(ctx context.Context, id int64) (*models.Owner, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone, email, mailing_address, contact_attempts, last_contact, notes FROM owners WHERE id = ?", id)
	owner, err := scanOwner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return owner, err
}

func (s *SQLiteStore) UpdateOwnerName(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE owners SET name = ? WHERE id = ?", name, id)
	return err
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO scrape_runs (run_uid, site_id, started_at, status) VALUES (?, ?, ?, ?)",
		run.RunUID, run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE scrape_runs SET finished_at = ?, status = ?, leads_found = ?, leads_saved = ?, leads_updated = ?, errors_count = ? WHERE id = ?",
		run.FinishedAt, run.Status, run.LeadsFound, run.LeadsSaved, run.LeadsUpdated, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) Log(ctx context.Context, runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO scrape_logs (run_id, timestamp, level, message, site_id) VALUES (?, ?, ?, ?, ?)",
		runID, time.Now(), level, message, siteID)
	return err
}
