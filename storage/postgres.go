package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadscout/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS owners (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		mailing_address TEXT NOT NULL DEFAULT '',
		contact_attempts INTEGER NOT NULL DEFAULT 0,
		last_contact TIMESTAMPTZ,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS properties (
		id BIGSERIAL PRIMARY KEY,
		address TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION,
		bedrooms INTEGER,
		bathrooms DOUBLE PRECISION,
		square_feet INTEGER,
		lot_size DOUBLE PRECISION,
		year_built INTEGER,
		property_type TEXT NOT NULL DEFAULT 'unknown',
		listing_date TIMESTAMPTZ,
		last_updated TIMESTAMPTZ,
		source TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		days_on_market INTEGER,
		price_reduced BOOLEAN NOT NULL DEFAULT FALSE,
		price_reduction_amount DOUBLE PRECISION,
		is_foreclosure BOOLEAN NOT NULL DEFAULT FALSE,
		is_probate BOOLEAN NOT NULL DEFAULT FALSE,
		is_vacant BOOLEAN NOT NULL DEFAULT FALSE,
		tax_delinquent BOOLEAN NOT NULL DEFAULT FALSE,
		code_violations BOOLEAN NOT NULL DEFAULT FALSE,
		absentee_owner BOOLEAN NOT NULL DEFAULT FALSE,
		distress_keywords TEXT,
		distress_score INTEGER NOT NULL DEFAULT 0,
		owner_id BIGINT REFERENCES owners(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_source_url ON properties(source, source_url);
	CREATE INDEX IF NOT EXISTS idx_properties_address ON properties(address);
	CREATE INDEX IF NOT EXISTS idx_properties_score ON properties(distress_score);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id BIGSERIAL PRIMARY KEY,
		run_uid TEXT NOT NULL,
		site_id TEXT NOT NULL,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT,
		leads_found INTEGER NOT NULL DEFAULT 0,
		leads_saved INTEGER NOT NULL DEFAULT 0,
		leads_updated INTEGER NOT NULL DEFAULT 0,
		errors_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT REFERENCES scrape_runs(id),
		timestamp TIMESTAMPTZ,
		level TEXT,
		message TEXT,
		site_id TEXT
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const pgLeadPlaceholders = `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28`

const pgLeadSetClause = `address = $1, city = $2, state = $3, zip = $4, price = $5, bedrooms = $6,
	bathrooms = $7, square_feet = $8, lot_size = $9, year_built = $10, property_type = $11,
	listing_date = $12, last_updated = $13, source = $14, source_url = $15, status = $16,
	days_on_market = $17, price_reduced = $18, price_reduction_amount = $19, is_foreclosure = $20,
	is_probate = $21, is_vacant = $22, tax_delinquent = $23, code_violations = $24,
	absentee_owner = $25, distress_keywords = $26, distress_score = $27, owner_id = $28`

func (s *PostgresStore) SaveLeads(ctx context.Context, leads []*models.Lead) (*SaveStats, error) {
	stats := &SaveStats{}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	var batchSaved, batchUpdated, batchCount int
	flush := func() error {
		if err := tx.Commit(ctx); err != nil {
			log.Printf("storage: batch commit failed, %d leads dropped: %v", batchCount, err)
			stats.Errors += batchCount
		} else {
			stats.Saved += batchSaved
			stats.Updated += batchUpdated
		}
		batchSaved, batchUpdated, batchCount = 0, 0, 0
		tx, err = s.pool.Begin(ctx)
		return err
	}

	for _, lead := range leads {
		if lead.Address == "" {
			log.Printf("storage: skipping lead without address (source_url=%s)", lead.SourceURL)
			stats.Errors++
			continue
		}

		// Each record runs inside a savepoint. Postgres aborts the whole
		// transaction on a statement error, so without one a single bad
		// record would poison every remaining upsert in the open batch.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return stats, err
		}
		created, err := s.upsertLead(ctx, sp, lead)
		if err != nil {
			log.Printf("storage: failed to save lead %s: %v", lead.Address, err)
			stats.Errors++
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				log.Printf("storage: savepoint rollback for %s failed: %v", lead.Address, rbErr)
			}
			continue
		}
		if err := sp.Commit(ctx); err != nil {
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

	if err := tx.Commit(ctx); err != nil {
		log.Printf("storage: final commit failed, %d leads dropped: %v", batchCount, err)
		stats.Errors += batchCount
	} else {
		stats.Saved += batchSaved
		stats.Updated += batchUpdated
	}

	return stats, nil
}

func (s *PostgresStore) upsertLead(ctx context.Context, tx pgx.Tx, lead *models.Lead) (bool, error) {
	row := tx.QueryRow(ctx,
		"SELECT "+leadCols+" FROM properties WHERE source = $1 AND source_url = $2",
		lead.Source, lead.SourceURL)

	existing, err := scanLead(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
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

		err := tx.QueryRow(ctx,
			"INSERT INTO properties (address, city, state, zip, price, bedrooms, bathrooms, square_feet, lot_size, year_built, property_type, listing_date, last_updated, source, source_url, status, days_on_market, price_reduced, price_reduction_amount, is_foreclosure, is_probate, is_vacant, tax_delinquent, code_violations, absentee_owner, distress_keywords, distress_score, owner_id) VALUES ("+pgLeadPlaceholders+") RETURNING id",
			leadArgs(lead)...).Scan(&lead.ID)
		if err != nil {
			return false, err
		}
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
	if _, err := tx.Exec(ctx,
		"UPDATE properties SET "+pgLeadSetClause+" WHERE id = $29", args...); err != nil {
		return false, err
	}

	lead.ID = existing.ID
	return false, nil
}

func (s *PostgresStore) attachOwner(ctx context.Context, tx pgx.Tx, lead *models.Lead) error {
	if lead.Owner == nil {
		return nil
	}

	if lead.OwnerID != nil {
		row := tx.QueryRow(ctx,
			"SELECT id, name, phone, email, mailing_address, contact_attempts, last_contact, notes FROM owners WHERE id = $1",
			*lead.OwnerID)
		existing, err := scanOwner(row)
		if err != nil {
			return err
		}
		mergeOwner(existing, lead.Owner)
		_, err = tx.Exec(ctx,
			"UPDATE owners SET name = $1, phone = $2, email = $3, mailing_address = $4 WHERE id = $5",
			existing.Name, existing.Phone, existing.Email, existing.MailingAddress, existing.ID)
		return err
	}

	var id int64
	err := tx.QueryRow(ctx,
		"INSERT INTO owners (name, phone, email, mailing_address, notes) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		lead.Owner.Name, lead.Owner.Phone, lead.Owner.Email, lead.Owner.MailingAddress, lead.Owner.Notes).Scan(&id)
	if err != nil {
		return err
	}
	lead.Owner.ID = id
	lead.OwnerID = &id
	return nil
}

func (s *PostgresStore) GetLeadBySource(ctx context.Context, source, sourceURL string) (*models.Lead, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+leadCols+" FROM properties WHERE source = $1 AND source_url = $2",
		source, sourceURL)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return lead, err
}

func (s *PostgresStore) QueryLeads(ctx context.Context, f Filter) ([]models.Lead, error) {
	query := "SELECT " + leadCols + " FROM properties WHERE 1=1"
	var args []any

	if f.Source != "" {
		args = append(args, f.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if f.MinScore > 0 {
		args = append(args, f.MinScore)
		query += fmt.Sprintf(" AND distress_score >= $%d", len(args))
	}

	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortColumn(f.SortBy), dir)

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) ListLeads(ctx context.Context) ([]models.Lead, error) {
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

func (s *PostgresStore) DeleteLead(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM properties WHERE id = $1", id)
	return err
}

func (s *PostgresStore) UpdateLeadAddress(ctx context.Context, id int64, address string) error {
	_, err := s.pool.Exec(ctx, "UPDATE properties SET address = $1 WHERE id = $2", address, id)
	return err
}

func (s *PostgresStore) UpdateLeadOwner(ctx context.Context, id int64, ownerID *int64) error {
	_, err := s.pool.Exec(ctx, "UPDATE properties SET owner_id = $1 WHERE id = $2", ownerID, id)
	return err
}

func (s *PostgresStore) UpdateScore(ctx context.Context, id int64, score int) error {
	_, err := s.pool.Exec(ctx, "UPDATE properties SET distress_score = $1 WHERE id = $2", score, id)
	return err
}

func (s *PostgresStore) GetOwner(ctx context.Context, id int64) (*models.Owner, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, name, phone, email, mailing_address, contact_attempts, last_contact, notes FROM owners WHERE id = $1", id)
	owner, err := scanOwner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return owner, err
}

func (s *PostgresStore) UpdateOwnerName(ctx context.Context, id int64, name string) error {
	_, err := s.pool.Exec(ctx, "UPDATE owners SET name = $1 WHERE id = $2", name, id)
	return err
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		"INSERT INTO scrape_runs (run_uid, site_id, started_at, status) VALUES ($1, $2, $3, $4) RETURNING id",
		run.RunUID, run.SiteID, run.StartedAt, run.Status).Scan(&id)
	return id, err
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE scrape_runs SET finished_at = $1, status = $2, leads_found = $3, leads_saved = $4, leads_updated = $5, errors_count = $6 WHERE id = $7",
		run.FinishedAt, run.Status, run.LeadsFound, run.LeadsSaved, run.LeadsUpdated, run.ErrorsCount, run.ID)
	return err
}

func (s *PostgresStore) Log(ctx context.Context, runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO scrape_logs (run_id, timestamp, level, message, site_id) VALUES ($1, $2, $3, $4, $5)",
		runID, time.Now(), level, message, siteID)
	return err
}
