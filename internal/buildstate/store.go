package buildstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	fnderrors "git.home.luguber.info/inful/tplgen/internal/foundation/errors"
)

// Envelope layout: 4-byte magic, 1-byte envelope version, gzip-compressed
// JSON payload. The payload's format_version must additionally match
// FormatVersion; there is no field-by-field migration.
var stateMagic = [4]byte{'T', 'G', 'B', 'S'}

const envelopeVersion byte = 1

// Store loads and saves the persisted build description. Every failure mode
// of persistence is absorbed here: callers only ever see "previous state" or
// "no previous state".
type Store struct {
	logger *slog.Logger
}

// NewStore creates a build-state store.
func NewStore() *Store {
	return &Store{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// StatePath returns the cache file path for an intermediate directory.
func StatePath(intermediateDir string) string {
	return filepath.Join(intermediateDir, StateFileName)
}

// Load reads the previous build description from path. It returns nil, never
// an error, when the file is missing, truncated, garbled, or written by a
// different format version. Decode failures are logged as a terse warning
// plus a detailed debug diagnostic, and the build proceeds as a cold start.
func (s *Store) Load(path string) *BuildDescription {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("No previous build state", "path", path)
			return nil
		}
		s.warnDiscard(path, fnderrors.PersistenceError("failed to read build state").
			WithCause(err).WithContext("path", path).Build())
		return nil
	}

	desc, err := decode(data)
	if err != nil {
		s.warnDiscard(path, fnderrors.PersistenceError("failed to decode build state").
			WithCause(err).WithContext("path", path).WithContext("size", len(data)).Build())
		return nil
	}

	if desc.FormatVersion != FormatVersion {
		s.logger.Warn("Build state has a different format version, rebuilding everything",
			"path", path, "found", desc.FormatVersion, "current", FormatVersion)
		return nil
	}

	s.logger.Debug("Loaded previous build state",
		"path", path,
		"transform_entries", len(desc.TransformEntries),
		"preprocess_entries", len(desc.PreprocessEntries))
	return desc
}

// Save serializes the description to path, creating the intermediate
// directory if needed and replacing the previous file atomically. On failure
// it logs a warning, removes any partially written file so the next run
// cold-starts, and returns the error. Save failure never fails the build;
// callers may ignore the returned error.
func (s *Store) Save(desc *BuildDescription, path string) error {
	data, err := encode(desc)
	if err != nil {
		return s.saveFailed(path, "", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return s.saveFailed(path, "", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return s.saveFailed(path, tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return s.saveFailed(path, tempPath, err)
	}

	s.logger.Debug("Saved build state", "path", path, "bytes", len(data))
	return nil
}

func (s *Store) saveFailed(path, tempPath string, err error) error {
	ce := fnderrors.PersistenceError("failed to save build state").
		WithCause(err).WithContext("path", path).Build()
	s.logger.Warn("Could not save build state, next run will rebuild everything",
		"path", path, "error", err)
	s.logger.Debug("Build state save diagnostic", "detail", ce.Detail())

	// Remove partials so a later run never trusts a truncated cache.
	if tempPath != "" {
		_ = os.Remove(tempPath)
	}
	_ = os.Remove(path)
	return ce
}

func (s *Store) warnDiscard(path string, ce *fnderrors.ClassifiedError) {
	s.logger.Warn("Could not load previous build state, rebuilding everything",
		"path", path, "error", ce.Cause())
	s.logger.Debug("Build state load diagnostic", "detail", ce.Detail())
}

func encode(desc *BuildDescription) ([]byte, error) {
	payload, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("marshal description: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(stateMagic[:])
	buf.WriteByte(envelopeVersion)

	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress description: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress description: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*BuildDescription, error) {
	if len(data) < len(stateMagic)+1 {
		return nil, fmt.Errorf("state file too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:len(stateMagic)], stateMagic[:]) {
		return nil, fmt.Errorf("bad magic %q", data[:len(stateMagic)])
	}
	if v := data[len(stateMagic)]; v != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", v)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data[len(stateMagic)+1:]))
	if err != nil {
		return nil, fmt.Errorf("open compressed payload: %w", err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}

	var desc BuildDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return nil, fmt.Errorf("unmarshal description: %w", err)
	}
	return &desc, nil
}
