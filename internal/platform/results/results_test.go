package results

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewviz/reportd/internal/domain"
)

func TestFileStore_WriteRead(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	jobID := uuid.New()
	name, err := s.Write(jobID, domain.FormatCSV, []byte("id,name\n1,alpha\n"))
	require.NoError(t, err)
	assert.Equal(t, jobID.String()+".csv", name)

	data, err := s.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,alpha\n", string(data))
}

func TestFileStore_ReadStripsDirectoryComponents(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	jobID := uuid.New()
	name, err := s.Write(jobID, domain.FormatTSV, []byte("payload"))
	require.NoError(t, err)

	// A stored path with directory components resolves to the same file.
	data, err := s.Read("../../" + name)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestFileStore_ReadMissing(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read("does-not-exist.csv")
	assert.Error(t, err)
}
