package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FileChecksum hashes the whole file content. Used to skip spreadsheets
// that were already ingested in a previous run.
func FileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash content of %s: %w", filePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// RowChecksum hashes one raw row for traceability.
func RowChecksum(record []string) string {
	digest := xxhash.New()
	digest.WriteString(strings.Join(record, ";"))
	return hex.EncodeToString(digest.Sum(nil))
}
