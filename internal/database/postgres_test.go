package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/config"
)

func TestConnectPostgresRequiresDSN(t *testing.T) {
	db, err := ConnectPostgres("", config.PoolConfig{MaxOpenConns: 4})
	require.Error(t, err)
	require.Nil(t, db)
}
