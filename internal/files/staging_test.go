package files

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

func manager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(t.TempDir(), zap.NewNop())
	m.now = func() time.Time { return time.Unix(1750000000, 0) }
	return m
}

func TestSaveSpotFileLayout(t *testing.T) {
	m := manager(t)

	rel, err := m.SaveSpotFile("c1", "my spot.mp4", strings.NewReader("video-bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "spots", "c1", "1750000000_my_spot.mp4"), rel)

	data, err := os.ReadFile(filepath.Join(m.Root, rel))
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestSaveDocumentFileLayout(t *testing.T) {
	m := manager(t)

	rel, err := m.SaveDocumentFile(models.OwnerVehicle, "V1", "RCA 2026", "polita.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("documents", "vehicles", "V1", "RCA_2026_1750000000_polita.pdf"), rel)
}

func TestExtensionWhitelists(t *testing.T) {
	m := manager(t)

	_, err := m.SaveDocumentFile(models.OwnerDriver, "d1", "licence", "movie.mp4", strings.NewReader("x"))
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = m.SaveSpotFile("c1", "clip.mov", strings.NewReader("x"))
	require.NoError(t, err)

	_, err = m.SaveSpotFile("c1", "script.sh", strings.NewReader("x"))
	require.ErrorAs(t, err, &verr)
}

func TestSizeCapRemovesStagedFile(t *testing.T) {
	m := manager(t)

	big := bytes.Repeat([]byte("a"), MaxFileSize+1)
	_, err := m.SaveSpotFile("c1", "huge.mp4", bytes.NewReader(big))
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	// No staged leftovers anywhere under the spot directory.
	entries, err := os.ReadDir(filepath.Join(m.Root, "data", "spots", "c1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveTolerant(t *testing.T) {
	m := manager(t)
	rel, err := m.SaveSpotFile("c1", "clip.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, m.Remove(rel))
	require.NoError(t, m.Remove(rel), "removing a missing file is not an error")
	require.NoError(t, m.Remove(""))
}

func TestSanitizeNameStripsPathTricks(t *testing.T) {
	assert.Equal(t, "etcpasswd.pdf", sanitizeName("../../etc:passwd.pdf"))
}
