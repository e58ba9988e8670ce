package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// $n placeholders work on both postgres and sqlite3.
const (
	createDeliveries = `CREATE TABLE IF NOT EXISTS deliveries (
	run_id    TEXT NOT NULL,
	name      TEXT NOT NULL,
	phone     TEXT NOT NULL,
	sent_date TEXT NOT NULL,
	sent_time TEXT NOT NULL
)`
	createPhoneIndex = `CREATE INDEX IF NOT EXISTS deliveries_phone_idx ON deliveries (phone)`
	insertDelivery   = `INSERT INTO deliveries (run_id, name, phone, sent_date, sent_time) VALUES ($1, $2, $3, $4, $5)`
	selectHas        = `SELECT 1 FROM deliveries WHERE phone = $1 LIMIT 1`
	selectPhones     = `SELECT DISTINCT phone FROM deliveries`
	selectRuns       = `SELECT run_id, COUNT(DISTINCT phone) FROM deliveries GROUP BY run_id ORDER BY MIN(sent_date), MIN(sent_time)`
)

// SQL is a database-backed ledger for setups that keep history outside the
// report directory.
type SQL struct {
	db     *sql.DB
	driver string
}

// ParseDSN maps a ledger DSN to a database/sql driver name and source.
// postgres:// and postgresql:// go to lib/pq; sqlite://path, file:path and
// bare paths go to go-sqlite3.
func ParseDSN(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", strings.TrimPrefix(dsn, "sqlite://")), nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite3", dsn, nil
	case strings.Contains(dsn, "://"):
		return "", "", fmt.Errorf("unsupported ledger dsn scheme: %s", dsn)
	case dsn == "":
		return "", "", fmt.Errorf("empty ledger dsn")
	default:
		return "sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", dsn), nil
	}
}

// OpenSQL connects and creates the deliveries table if needed.
func OpenSQL(ctx context.Context, dsn string) (*SQL, error) {
	driver, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}

	for _, stmt := range []string{createDeliveries, createPhoneIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate ledger database: %w", err)
		}
	}

	logrus.Debugf("[Ledger] Using %s ledger", driver)
	return &SQL{db: db, driver: driver}, nil
}

func (s *SQL) Has(phone string) bool {
	var one int
	err := s.db.QueryRow(selectHas, phone).Scan(&one)
	if err != nil && err != sql.ErrNoRows {
		logrus.Warnf("[Ledger] Lookup of %s failed: %v", phone, err)
	}
	return err == nil
}

func (s *SQL) Phones() map[string]struct{} {
	out := make(map[string]struct{})
	rows, err := s.db.Query(selectPhones)
	if err != nil {
		logrus.Warnf("[Ledger] Listing phones failed: %v", err)
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			logrus.Warnf("[Ledger] Scanning phone failed: %v", err)
			continue
		}
		out[p] = struct{}{}
	}
	return out
}

// Record inserts the run's deliveries in one transaction.
func (s *SQL) Record(ctx context.Context, runID string, records []Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNothingToRecord
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertDelivery)
	if err != nil {
		return "", fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, runID, rec.Name, rec.Phone, rec.Date, rec.Time); err != nil {
			return "", fmt.Errorf("insert delivery %s: %w", rec.Phone, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit ledger tx: %w", err)
	}
	return fmt.Sprintf("%s ledger run %s", s.driver, runID), nil
}

func (s *SQL) Sources() []Source {
	rows, err := s.db.Query(selectRuns)
	if err != nil {
		logrus.Warnf("[Ledger] Listing runs failed: %v", err)
		return nil
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.Name, &src.Phones); err != nil {
			continue
		}
		src.Name = "run " + src.Name
		out = append(out, src)
	}
	return out
}

func (s *SQL) Close() error {
	return s.db.Close()
}
