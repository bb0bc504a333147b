package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/coldwatch/coldwatch/internal/types"
)

// LastFile keeps the most recent reading in a one-line text file:
//
//	DD-MM-YYYY HH:MM:SS <value>
type LastFile struct {
	path string
}

// NewLastFile creates a last-reading slot at path
func NewLastFile(path string) *LastFile {
	return &LastFile{path: path}
}

// PersistLast replaces the file contents with r. The write goes to a
// temporary file that is renamed over the old one, so readers see either
// the previous line or the new one.
func (f *LastFile) PersistLast(ctx context.Context, r types.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line := fmt.Sprintf("%s %s %s", r.Date(), r.Clock(), r.FormattedValue())

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(line); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing last reading: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// Latest reads back the last persisted reading
func (f *LastFile) Latest(ctx context.Context) (types.Reading, error) {
	if err := ctx.Err(); err != nil {
		return types.Reading{}, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return types.Reading{}, ErrNoReading
	}
	if err != nil {
		return types.Reading{}, fmt.Errorf("reading %s: %w", f.path, err)
	}
	return ParseLastLine(string(data))
}

// ParseLastLine parses a "DD-MM-YYYY HH:MM:SS value" line
func ParseLastLine(line string) (types.Reading, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return types.Reading{}, ErrNoReading
	}
	if len(fields) != 3 {
		return types.Reading{}, fmt.Errorf("malformed last reading %q", line)
	}

	ts, err := time.ParseInLocation(types.DateLayout+" "+types.TimeLayout, fields[0]+" "+fields[1], time.Local)
	if err != nil {
		return types.Reading{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	value, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return types.Reading{}, fmt.Errorf("parsing value: %w", err)
	}
	return types.NewReading(value, ts), nil
}
