package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"

	_ "github.com/mattn/go-sqlite3"
)

// SessionStore persists the linked-device keys so the QR is scanned once.
type SessionStore struct {
	container *sqlstore.Container
	dbPath    string
}

// OpenSessionStore opens or creates the SQLite session database at dbPath.
func OpenSessionStore(ctx context.Context, dbPath string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	dbURI := fmt.Sprintf("file:%s?_foreign_keys=on", dbPath)
	container, err := sqlstore.New(ctx, "sqlite3", dbURI, newLogger("SessionDB"))
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	return &SessionStore{container: container, dbPath: dbPath}, nil
}

// Device returns the stored device, creating one on first use.
func (s *SessionStore) Device(ctx context.Context) (*store.Device, bool, error) {
	device, err := s.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get device: %w", err)
	}
	if device != nil && device.ID != nil {
		return device, true, nil
	}
	if device == nil {
		device = s.container.NewDevice()
	}
	return device, false, nil
}

// Path returns the session database file.
func (s *SessionStore) Path() string {
	return s.dbPath
}

// Close closes the session database connection
func (s *SessionStore) Close() error {
	if s.container != nil {
		return s.container.Close()
	}
	return nil
}
