package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/whatsapp-automation/broadcaster/internal/phone"
)

const (
	ReportPrefix     = "delivered_report_"
	ReportExt        = ".csv"
	reportTimeLayout = "20060102_150405"
)

// ReportHeader is the column order of every report file.
var ReportHeader = []string{"name", "phone", "date", "time"}

// ReportDir is the file-backed ledger: every delivered_report_*.csv in a
// directory, read once at open. New runs add a new file; existing reports are
// never modified.
type ReportDir struct {
	Dir string
	Now func() time.Time

	mu     sync.RWMutex
	phones map[string]struct{}
	// keys answers Has. A report cell is matched both as written and
	// normalized, so rows from older reports holding raw numbers still match
	// while an already normalized value is never normalized a second time.
	keys    map[string]struct{}
	sources []Source
}

// OpenReportDir scans dir for reports. Unreadable reports are logged and
// skipped so one bad file does not block a run.
func OpenReportDir(dir string) (*ReportDir, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	r := &ReportDir{
		Dir:    dir,
		Now:    time.Now,
		phones: make(map[string]struct{}),
		keys:   make(map[string]struct{}),
	}

	files, err := filepath.Glob(filepath.Join(dir, ReportPrefix+"*"+ReportExt))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		n, err := r.load(f)
		if err != nil {
			logrus.Warnf("[Ledger] Skipping report %s: %v", f, err)
			continue
		}
		r.sources = append(r.sources, Source{Name: filepath.Base(f), Phones: n})
	}

	logrus.Debugf("[Ledger] %d delivered phones from %d reports in %s", len(r.phones), len(r.sources), dir)
	return r, nil
}

func (r *ReportDir) load(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	col := -1
	for i, h := range rows[0] {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == "phone" {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, errors.New("no phone column")
	}

	seen := make(map[string]struct{})
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		p := phone.Digits(row[col])
		if p == "" {
			continue
		}
		seen[p] = struct{}{}
		r.phones[p] = struct{}{}
		r.keys[p] = struct{}{}
		r.keys[phone.Canonical(p)] = struct{}{}
	}
	return len(seen), nil
}

func (r *ReportDir) Has(p string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.keys[p]
	return ok
}

func (r *ReportDir) Phones() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{}, len(r.phones))
	for p := range r.phones {
		out[p] = struct{}{}
	}
	return out
}

func (r *ReportDir) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Source(nil), r.sources...)
}

// Record writes a new timestamped report. If a report with the same second
// already exists a numeric suffix is added rather than overwriting it.
func (r *ReportDir) Record(_ context.Context, _ string, records []Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNothingToRecord
	}

	f, path, err := r.createReport()
	if err != nil {
		return "", err
	}

	w := csv.NewWriter(f)
	if err := w.Write(ReportHeader); err != nil {
		f.Close()
		return "", fmt.Errorf("write report header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.Name, rec.Phone, rec.Date, rec.Time}); err != nil {
			f.Close()
			return "", fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}

	r.mu.Lock()
	seen := make(map[string]struct{})
	for _, rec := range records {
		r.phones[rec.Phone] = struct{}{}
		r.keys[rec.Phone] = struct{}{}
		seen[rec.Phone] = struct{}{}
	}
	r.sources = append(r.sources, Source{Name: filepath.Base(path), Phones: len(seen)})
	r.mu.Unlock()

	return path, nil
}

func (r *ReportDir) createReport() (*os.File, string, error) {
	base := ReportPrefix + r.Now().Format(reportTimeLayout)
	for i := 0; i < 100; i++ {
		name := base + ReportExt
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ReportExt)
		}
		path := filepath.Join(r.Dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create report: %w", err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("create report: too many reports named %s", base)
}

func (r *ReportDir) Close() error { return nil }
