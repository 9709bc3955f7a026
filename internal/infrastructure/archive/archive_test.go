package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/reference"
	"sheetbridge/internal/domain/validation"
	"sheetbridge/internal/infrastructure/blob"
)

func report() *validation.Report {
	r := validation.NewReport()
	r.RunID = "run-1"
	r.DuplicateIDs["Customers"] = []string{"2"}
	r.MissingFK["Orders"] = []reference.MissingReference{{
		Column: "customer_id_(Customers)", Target: "Customers",
		MissingValues: []string{"99"}, Count: 1, Rows: []int{2},
	}}
	return r
}

func TestSaveLoad(t *testing.T) {
	a, err := New(blob.NewResolver(blob.S3Config{}))
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"report.json", "report.json.zst"} {
		p := filepath.Join(dir, name)
		require.NoError(t, a.Save(ctx, p, report()))

		got, err := a.Load(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, report(), got, name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "report.json.zst"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4])
}

func TestDecode_Garbage(t *testing.T) {
	a, err := New(blob.NewResolver(blob.S3Config{}))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Decode([]byte("not zstd"), true)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
	_, err = a.Decode([]byte("{"), false)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}
