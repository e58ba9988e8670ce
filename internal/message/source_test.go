package message

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIntn struct {
	next []int
}

func (s *seqIntn) Intn(n int) int {
	v := s.next[0] % n
	s.next = s.next[1:]
	return v
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadLiteral(t *testing.T) {
	src, err := Load(Options{Text: "Olá {name}"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Olá {name}", src.Next())
}

func TestLoadTextFile(t *testing.T) {
	path := writeFile(t, "msg.txt", "Line one\nLine two\n")
	src, err := Load(Options{TextFile: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Line one\nLine two", src.Next())
}

func TestLoadJSONList(t *testing.T) {
	path := writeFile(t, "msgs.json", `["first {name}", "second", "third"]`)
	rnd := &seqIntn{next: []int{2, 0, 1}}
	src, err := Load(Options{JSONFile: path}, rnd)
	require.NoError(t, err)

	assert.Equal(t, "third", src.Next())
	assert.Equal(t, "first {name}", src.Next())
	assert.Equal(t, "second", src.Next())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Options{}, nil)
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = Load(Options{Text: "a", TextFile: "b"}, nil)
	assert.ErrorIs(t, err, ErrMultipleSource)

	_, err = Load(Options{JSONFile: writeFile(t, "empty.json", "[]")}, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = Load(Options{JSONFile: writeFile(t, "bad.json", "{")}, nil)
	assert.Error(t, err)

	_, err = Load(Options{TextFile: filepath.Join(t.TempDir(), "missing.txt")}, nil)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "Hi Ana, {x}", Render("Hi {name}, {x}", "Ana"))
	assert.Equal(t, "Hi {name}", Render("Hi {name}", ""))
	assert.Equal(t, "Hi {name}", Render("Hi {name}", "   "))
}
