package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/luxta/internal/config"
	"github.com/iudanet/luxta/internal/server/storage"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		cfg  *config.Config
		name string
	}{
		{name: "memory", cfg: &config.Config{Store: config.StoreMemory}},
		{name: "bolt", cfg: &config.Config{Store: config.StoreBolt, BoltPath: filepath.Join(dir, "luxta.db")}},
		{name: "sqlite", cfg: &config.Config{Store: config.StoreSQLite, SQLiteDSN: filepath.Join(dir, "luxta.sqlite")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := Open(ctx, tt.cfg)
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Set(ctx, storage.UserKey("u1"), []byte(`{}`)))
			got, err := s.Get(ctx, storage.UserKey("u1"))
			require.NoError(t, err)
			assert.Equal(t, []byte(`{}`), got)
		})
	}
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Store: "etcd"})
	assert.Error(t, err)
}
