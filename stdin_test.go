package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestReadStdin(t *testing.T) {
	t.Run("text keeps content", func(t *testing.T) {
		e, err := readStdin(strings.NewReader("hello\n"))
		require.NoError(t, err)
		assert.Equal(t, stdinLabel, e.RelPath)
		assert.Equal(t, ClassText, e.Class)
		assert.Equal(t, []byte("hello\n"), e.Content)
		assert.Equal(t, int64(6), e.Size)
	})

	t.Run("binary drops content", func(t *testing.T) {
		e, err := readStdin(bytes.NewReader([]byte{0x89, 'P', 'N', 'G', 0xff, 0}))
		require.NoError(t, err)
		assert.Equal(t, ClassBinary, e.Class)
		assert.Nil(t, e.Content)
	})

	t.Run("too large", func(t *testing.T) {
		e, err := readStdin(bytes.NewReader(bytes.Repeat([]byte("a"), maxFileSize+10)))
		require.NoError(t, err)
		assert.Equal(t, ClassTooLarge, e.Class)
		assert.Nil(t, e.Content)
	})

	t.Run("read error is an I/O error", func(t *testing.T) {
		_, err := readStdin(failingReader{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIO)
		assert.Equal(t, exitIOErr, exitCodeFor(err))
	})
}
