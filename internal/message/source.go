// Package message picks and personalizes the text sent to each contact.
package message

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/titanous/json5"
)

// NamePlaceholder is replaced with the contact's name when one is known.
const NamePlaceholder = "{name}"

var (
	ErrNoSource       = errors.New("no message source provided")
	ErrMultipleSource = errors.New("only one message source may be provided")
	ErrEmptyMessage   = errors.New("message is empty")
)

// Source yields the template for the next contact.
type Source interface {
	Next() string
}

// Intn is satisfied by *antiban.Pacer and *rand.Rand.
type Intn interface {
	Intn(n int) int
}

// Fixed always returns the same template.
type Fixed string

func (f Fixed) Next() string { return string(f) }

// Pool picks one of several templates uniformly at random.
type Pool struct {
	templates []string
	rnd       Intn
}

// NewPool returns a Pool over templates. templates must be non-empty.
func NewPool(templates []string, rnd Intn) (*Pool, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("message list: %w", ErrEmptyMessage)
	}
	for i, t := range templates {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("message list entry %d: %w", i, ErrEmptyMessage)
		}
	}
	return &Pool{templates: templates, rnd: rnd}, nil
}

func (p *Pool) Next() string {
	if len(p.templates) == 1 {
		return p.templates[0]
	}
	return p.templates[p.rnd.Intn(len(p.templates))]
}

// Len returns the number of templates in the pool.
func (p *Pool) Len() int { return len(p.templates) }

// Options names the three mutually exclusive ways to provide the message.
type Options struct {
	Text     string // literal template
	TextFile string // path to a file holding the template
	JSONFile string // path to a JSON (or JSON5) array of templates
}

// Load builds the Source described by opts. Exactly one field must be set.
func Load(opts Options, rnd Intn) (Source, error) {
	set := 0
	for _, v := range []string{opts.Text, opts.TextFile, opts.JSONFile} {
		if v != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return nil, ErrNoSource
	case set > 1:
		return nil, ErrMultipleSource
	}

	switch {
	case opts.TextFile != "":
		data, err := os.ReadFile(opts.TextFile)
		if err != nil {
			return nil, fmt.Errorf("read message file: %w", err)
		}
		text := strings.TrimRight(string(data), "\r\n")
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("message file %s: %w", opts.TextFile, ErrEmptyMessage)
		}
		return Fixed(text), nil

	case opts.JSONFile != "":
		data, err := os.ReadFile(opts.JSONFile)
		if err != nil {
			return nil, fmt.Errorf("read message list: %w", err)
		}
		var templates []string
		if err := json5.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("parse message list %s: %w", opts.JSONFile, err)
		}
		return NewPool(templates, rnd)

	default:
		if strings.TrimSpace(opts.Text) == "" {
			return nil, ErrEmptyMessage
		}
		return Fixed(opts.Text), nil
	}
}

// Render substitutes the contact name. Without a name the template is
// returned untouched.
func Render(template, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return template
	}
	return strings.ReplaceAll(template, NamePlaceholder, name)
}
