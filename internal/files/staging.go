package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

// MaxFileSize caps uploads at 10 MiB.
const MaxFileSize = 10 << 20

var documentExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true,
}

var spotExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true,
	".mp4": true, ".mov": true,
}

// Manager stages uploaded files into the permanent tree. The write order
// is: stage to a temp path, move into place, then let the caller commit
// the DB row; Remove cleans up if the commit fails.
type Manager struct {
	Root   string
	Logger *zap.Logger

	// now is swappable for tests; timestamps prefix stored names.
	now func() time.Time
}

// NewManager constructs a Manager rooted at the data directory.
func NewManager(root string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{Root: root, Logger: logger, now: time.Now}
}

// SaveSpotFile stores a spot media upload under
// data/spots/<campaign_id>/<timestamp>_<original_name> and returns the
// path relative to the root.
func (m *Manager) SaveSpotFile(campaignID, originalName string, r io.Reader) (string, error) {
	if err := checkExtension(originalName, spotExtensions); err != nil {
		return "", err
	}
	rel := filepath.Join("data", "spots", campaignID,
		fmt.Sprintf("%d_%s", m.now().Unix(), sanitizeName(originalName)))
	return rel, m.store(rel, r)
}

// SaveDocumentFile stores a document upload under
// documents/<owner_type>s/<owner_id>/<safe_doc_type>_<timestamp>_<name>.
func (m *Manager) SaveDocumentFile(ownerType models.OwnerType, ownerID, docType, originalName string, r io.Reader) (string, error) {
	if err := checkExtension(originalName, documentExtensions); err != nil {
		return "", err
	}
	rel := filepath.Join("documents", string(ownerType)+"s", ownerID,
		fmt.Sprintf("%s_%d_%s", sanitizeName(docType), m.now().Unix(), sanitizeName(originalName)))
	return rel, m.store(rel, r)
}

// store copies the reader to a staged temp file, enforcing the size cap,
// then renames it into place. Any failure removes the partial file.
func (m *Manager) store(rel string, r io.Reader) error {
	dest := filepath.Join(m.Root, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &models.FileIOError{Path: dest, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".staged-*")
	if err != nil {
		return &models.FileIOError{Path: dest, Err: err}
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	n, err := io.Copy(tmp, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		cleanup()
		return &models.FileIOError{Path: dest, Err: err}
	}
	if n > MaxFileSize {
		cleanup()
		return models.NewValidationError("file", "exceeds the %d MiB limit", MaxFileSize>>20)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &models.FileIOError{Path: dest, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return &models.FileIOError{Path: dest, Err: err}
	}
	m.Logger.Debug("file stored", zap.String("path", rel), zap.Int64("bytes", n))
	return nil
}

// Remove deletes a stored file, used when the DB commit fails or when a
// replaced file is retired after the new row commits.
func (m *Manager) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	err := os.Remove(filepath.Join(m.Root, rel))
	if err != nil && !os.IsNotExist(err) {
		return &models.FileIOError{Path: rel, Err: err}
	}
	return nil
}

// Open reads a stored file back.
func (m *Manager) Open(rel string) (*os.File, error) {
	f, err := os.Open(filepath.Join(m.Root, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s: %w", rel, models.ErrNotFound)
		}
		return nil, &models.FileIOError{Path: rel, Err: err}
	}
	return f, nil
}

func checkExtension(name string, allowed map[string]bool) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowed[ext] {
		return models.NewValidationError("file", "extension %q is not allowed", ext)
	}
	return nil
}

// sanitizeName strips path separators and whitespace from a client-
// provided file name.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '/' || r == '\\' || r == ':' || r == '\x00':
			return -1
		}
		return r
	}, name)
}
