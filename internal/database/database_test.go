package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-service/internal/config"
)

func TestNew_UnreachableServerStillYieldsHandle(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			// Nothing listens on port 1; only Migrate touches the network
			URL: "host=127.0.0.1 port=1 user=call dbname=calls sslmode=disable connect_timeout=1",
		},
	}

	db, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)

	// Repositories wired against this handle get query errors, not a
	// nil-pointer panic, while the server is down
	assert.Error(t, Migrate(db))
	assert.False(t, IsConnected())
}
