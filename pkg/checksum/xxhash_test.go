package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileChecksum(t *testing.T) {
	dir := t.TempDir()

	pathA := filepath.Join(dir, "a.csv")
	pathB := filepath.Join(dir, "b.csv")
	pathC := filepath.Join(dir, "c.csv")
	assert.NoError(t, os.WriteFile(pathA, []byte("serial;status\nSN-1;Conforme\n"), 0644))
	assert.NoError(t, os.WriteFile(pathB, []byte("serial;status\nSN-1;Conforme\n"), 0644))
	assert.NoError(t, os.WriteFile(pathC, []byte("serial;status\nSN-2;NOK\n"), 0644))

	sumA, err := FileChecksum(pathA)
	assert.NoError(t, err)
	sumB, err := FileChecksum(pathB)
	assert.NoError(t, err)
	sumC, err := FileChecksum(pathC)
	assert.NoError(t, err)

	assert.Equal(t, sumA, sumB, "identical content must hash identically regardless of path")
	assert.NotEqual(t, sumA, sumC)
	assert.NotEmpty(t, sumA)
}

func TestFileChecksum_MissingFile(t *testing.T) {
	_, err := FileChecksum(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestRowChecksum(t *testing.T) {
	row := []string{"SN-1", "Conforme", "08:15"}

	assert.Equal(t, RowChecksum(row), RowChecksum([]string{"SN-1", "Conforme", "08:15"}))
	assert.NotEqual(t, RowChecksum(row), RowChecksum([]string{"SN-1", "NOK", "08:15"}))
}
