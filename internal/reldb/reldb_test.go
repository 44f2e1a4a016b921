package reldb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testColumns = []Column{
	{Name: "id", Kind: Int, PrimaryKey: true},
	{Name: "email", Kind: Text, Unique: true, Nullable: true},
	{Name: "name", Kind: Text, Nullable: true},
	{Name: "age", Kind: Int, Nullable: true},
	{Name: "balance", Kind: Real, Nullable: true},
	{Name: "verified", Kind: Boolean, Nullable: true},
}

func newTestPager(t *testing.T) *Pager {
	t.Helper()

	file, err := os.Create(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		file.Close()
	})

	aPager, err := OpenPager(zap.NewNop(), file, WithSyncWrites(false))
	require.NoError(t, err)
	return aPager
}
