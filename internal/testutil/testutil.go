// Package testutil provides an in-memory SQLite store with the schema applied.
package testutil

import (
	"context"
	"io/fs"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/require"

	"github.com/mathew-h/experiment-tracking-sub000/db"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
)

func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// NewDB opens a private in-memory SQLite database and applies the embedded SQLite migrations.
func NewDB(t *testing.T) database.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := database.Open(ctx, database.ConnectionConfig{Driver: database.DriverSQLite}, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	files, err := database.UpFiles(db.Migrations, database.FolderForDriver(database.DriverSQLite))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		contents, err := fs.ReadFile(db.Migrations, name)
		require.NoError(t, err)
		_, err = conn.ExecContext(ctx, string(contents))
		require.NoError(t, err, name)
	}
	return conn
}

func Ptr[T any](v T) *T {
	return &v
}
