package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harun/pointlog/internal/observability"
	"github.com/harun/pointlog/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FileExt is the extension of session files.
const FileExt = ".session"

// MaxLineBytes bounds a single session line. Encoded records are well under
// a hundred bytes; longer lines are skipped as malformed.
const MaxLineBytes = 4096

const tracerName = "pointlog.session"

// Files resolves session ids to files under a single directory and mediates
// every read, write and delete of those files. Callers serialize access per
// session id; Files does no locking of its own.
type Files struct {
	dir    string
	logger zerolog.Logger
}

// NewFiles creates a Files rooted at dir. The directory is not created until
// Bootstrap is called.
func NewFiles(dir string, logger zerolog.Logger) *Files {
	return &Files{
		dir:    dir,
		logger: logger.With().Str("component", "session_files").Logger(),
	}
}

// Dir returns the sessions directory.
func (f *Files) Dir() string {
	return f.dir
}

// Bootstrap ensures the sessions directory exists. A failure leaves the
// store usable in memory; subsequent saves report PersistenceError.
func (f *Files) Bootstrap() error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}
	f.logger.Info().Str("dir", f.dir).Msg("Sessions directory ready")
	return nil
}

// ValidateID rejects ids that are empty or could escape the sessions
// directory.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	case strings.Contains(id, ".."):
		return fmt.Errorf("%w: contains '..'", ErrInvalidSessionID)
	case strings.ContainsAny(id, "/\\"):
		return fmt.Errorf("%w: contains path separator", ErrInvalidSessionID)
	case strings.Contains(id, "\x00"):
		return fmt.Errorf("%w: contains null byte", ErrInvalidSessionID)
	}
	return nil
}

// Path returns the backing file of a session.
func (f *Files) Path(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, id+FileExt), nil
}

// Load reads a session file. It reports false when the file does not exist.
// Lines that fail to decode are skipped with a warning; the remaining records
// keep file order.
func (f *Files) Load(ctx context.Context, id string) ([]Record, bool, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.files.load", attribute.String("session_id", id))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, f.logger)
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	path, err := f.Path(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug().Msg("Session file does not exist")
			return nil, false, nil
		}
		return nil, false, f.fail(span, "load", id, path, err)
	}
	defer file.Close()

	var records []Record
	reader := bufio.NewReader(file)
	lineNum := 0
	for {
		raw, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, false, f.fail(span, "load", id, path, readErr)
		}
		if raw != "" {
			lineNum++
			if rec, err := decodeFileLine(raw); err != nil {
				observability.RecordDecodeError()
				logger.Warn().
					Int("line", lineNum).
					Err(err).
					Msg("Skipping malformed session line")
			} else if rec != nil {
				records = append(records, *rec)
			}
		}
		if readErr != nil {
			break
		}
	}

	span.SetAttributes(attribute.Int("records", len(records)))
	logger.Debug().Int("records", len(records)).Msg("Session loaded")

	return records, true, nil
}

// Save overwrites the session file with records, oldest first. The file is
// written to a temporary sibling and renamed into place.
func (f *Files) Save(ctx context.Context, id string, records []Record) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.files.save",
		attribute.String("session_id", id),
		attribute.Int("records", len(records)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, f.logger)
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	path, err := f.Path(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	tempPath := path + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return f.fail(span, "save", id, path, err)
	}

	w := bufio.NewWriter(file)
	for _, rec := range records {
		w.WriteString(EncodeLine(rec))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return f.fail(span, "save", id, path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return f.fail(span, "save", id, path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return f.fail(span, "save", id, path, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return f.fail(span, "save", id, path, err)
	}

	logger.Debug().Int("records", len(records)).Msg("Session saved")
	return nil
}

// Remove deletes the session file and reports whether it existed.
func (f *Files) Remove(ctx context.Context, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.files.remove", attribute.String("session_id", id))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, f.logger)

	path, err := f.Path(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, f.fail(span, "remove", id, path, err)
	}

	logger.Debug().Msg("Session file removed")
	return true, nil
}

// List returns the ids of all sessions that have a file.
func (f *Files) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, FileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, FileExt))
	}
	return ids, nil
}

// ModTime returns when the session file was last written.
func (f *Files) ModTime(id string) (time.Time, error) {
	path, err := f.Path(id)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// decodeFileLine decodes one raw line read from a session file. Blank lines
// yield a nil record and no error.
func decodeFileLine(raw string) (*Record, error) {
	if len(raw) > MaxLineBytes {
		return nil, &DecodeError{
			Line: raw[:32] + "...",
			Err:  fmt.Errorf("line exceeds %d bytes", MaxLineBytes),
		}
	}
	line := strings.TrimRight(raw, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	rec, err := DecodeLine(line)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (f *Files) fail(span trace.Span, op, id, path string, err error) error {
	perr := &PersistenceError{Op: op, SessionID: id, Path: path, Err: err}
	observability.RecordPersistenceError(op)
	span.RecordError(perr)
	span.SetStatus(codes.Error, perr.Error())
	return perr
}
