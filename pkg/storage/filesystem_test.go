package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalArchiveSaveAndRead(t *testing.T) {
	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	stored, err := archive.Save("sy-1/v2.pdf", []byte("%PDF-data"))
	require.NoError(t, err)
	require.Equal(t, "sy-1/v2.pdf", stored)

	data, err := archive.Read("sy-1/v2.pdf")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-data"), data)
}

func TestLocalArchiveDelete(t *testing.T) {
	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	_, err = archive.Save("doc.pdf", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, archive.Delete("doc.pdf"))

	_, err = archive.Read("doc.pdf")
	require.Error(t, err)

	// Deleting an already-missing file is not an error.
	require.NoError(t, archive.Delete("doc.pdf"))
}

func TestLocalArchiveConfinesPaths(t *testing.T) {
	base := t.TempDir()
	archive, err := NewLocalArchive(base)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(base), "escape.pdf")
	_, err = archive.Save("../escape.pdf", []byte("x"))
	require.NoError(t, err)

	_, statErr := os.Stat(outside)
	require.True(t, os.IsNotExist(statErr))

	_, statErr = os.Stat(filepath.Join(base, "escape.pdf"))
	require.NoError(t, statErr)
}
