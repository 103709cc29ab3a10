package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"HistPull/internal/domain/models"
	"HistPull/pkg/logger"
)

const fileExt = ".dat"

// Writer persists export blocks as one file per signal. File names are
// the root prefix plus a zero-padded 0-based index plus ".dat", so a
// run with root "out/scan_" and 12 signals produces out/scan_00.dat
// through out/scan_11.dat. Existing files are overwritten.
type Writer struct {
	log *logger.Logger
}

// NewWriter creates a file writer. The logger may be nil.
func NewWriter(log *logger.Logger) *Writer {
	return &Writer{log: log}
}

// WriteAll writes every block under the root prefix and returns the
// paths written, in block order. Zero blocks writes zero files. The
// parent directory of the prefix is created if missing.
func (w *Writer) WriteAll(root string, blocks []models.ExportBlock) ([]string, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	if dir := filepath.Dir(root + "x"); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}

	width := indexWidth(len(blocks))
	paths := make([]string, 0, len(blocks))
	for i, b := range blocks {
		name := fmt.Sprintf("%s%0*d%s", root, width, i, fileExt)
		if err := os.WriteFile(name, []byte(b.Text), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, name)

		if w.log != nil {
			w.log.Debug("wrote dataset file",
				logger.String("path", name),
				logger.String("signal", b.Signal),
				logger.Int("bytes", len(b.Text)),
			)
		}
	}
	return paths, nil
}

// indexWidth is the digit count of the signal count, so indexes align
// and files sort lexically in signal order.
func indexWidth(count int) int {
	return len(strconv.Itoa(count))
}
