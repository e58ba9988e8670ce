// Package ledger remembers which phones were already messaged so a later run
// never contacts them again.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Record is one confirmed delivery. Phone is the normalized number.
type Record struct {
	Name  string
	Phone string
	Date  string
	Time  string
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// NewRecord stamps a delivery with the local date and time of at.
func NewRecord(name, phone string, at time.Time) Record {
	if name == "" {
		name = "N/A"
	}
	return Record{
		Name:  name,
		Phone: phone,
		Date:  at.Format(DateLayout),
		Time:  at.Format(TimeLayout),
	}
}

// Source describes where part of the ledger came from: a report file or a
// recorded run.
type Source struct {
	Name   string
	Phones int
}

// Ledger is the durable "already contacted" set.
type Ledger interface {
	// Has reports whether the normalized phone was delivered in any run.
	Has(phone string) bool
	// Phones returns a copy of every delivered phone.
	Phones() map[string]struct{}
	// Record persists one run's deliveries and returns where they went.
	Record(ctx context.Context, runID string, records []Record) (string, error)
	// Sources lists the reports or runs the ledger is built from.
	Sources() []Source
	Close() error
}

var ErrNothingToRecord = errors.New("no records to write")

// Tee fans writes out to every ledger and answers Has from any of them.
type Tee []Ledger

func (t Tee) Has(phone string) bool {
	for _, l := range t {
		if l.Has(phone) {
			return true
		}
	}
	return false
}

func (t Tee) Phones() map[string]struct{} {
	out := make(map[string]struct{})
	for _, l := range t {
		for p := range l.Phones() {
			out[p] = struct{}{}
		}
	}
	return out
}

// Record writes to every ledger in order and returns the first ledger's
// location. The first ledger is authoritative: only its failure is returned.
// Later ledgers that fail are logged and catch up on the next run's prune.
func (t Tee) Record(ctx context.Context, runID string, records []Record) (string, error) {
	if len(t) == 0 {
		return "", ErrNothingToRecord
	}
	loc, err := t[0].Record(ctx, runID, records)
	if err != nil {
		return "", err
	}
	for _, l := range t[1:] {
		if _, err := l.Record(ctx, runID, records); err != nil {
			logrus.Warnf("[Ledger] Secondary ledger failed to record run %s: %v", runID, err)
		}
	}
	return loc, nil
}

func (t Tee) Sources() []Source {
	var out []Source
	for _, l := range t {
		out = append(out, l.Sources()...)
	}
	return out
}

func (t Tee) Close() error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.Close())
	}
	return errors.Join(errs...)
}
