package ledger

import (
	"context"
)

// Open returns the report-directory ledger, teed with a SQL ledger when dsn
// is set. Reports stay the primary record either way.
func Open(ctx context.Context, reportDir, dsn string) (Ledger, error) {
	reports, err := OpenReportDir(reportDir)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return reports, nil
	}

	db, err := OpenSQL(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return Tee{reports, db}, nil
}
