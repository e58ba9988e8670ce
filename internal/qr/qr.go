// Package qr writes WhatsApp login codes to PNG files an operator can scan.
package qr

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 512

// Writer renders login codes into Dir.
type Writer struct {
	Dir  string
	Size int
	Now  func() time.Time
}

// NewWriter creates a writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, Size: DefaultSize, Now: time.Now}
}

// Write renders code and returns the file path.
func (w *Writer) Write(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty login code")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create qr dir: %w", err)
	}

	filename := fmt.Sprintf("qr-%s-%s.png", w.Now().Format("20060102_150405"), uuid.New().String()[:8])
	path := filepath.Join(w.Dir, filename)
	if err := qrcode.WriteFile(code, qrcode.Medium, w.Size, path); err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}
	return path, nil
}

// Terminal returns the code as block characters for printing to a console.
func Terminal(code string) (string, error) {
	q, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return "", err
	}
	return q.ToString(false), nil
}
