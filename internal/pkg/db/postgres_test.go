package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/config"
)

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		maxConns int32
		minConns int32
		timeout  time.Duration
		lifetime time.Duration
	}{
		{
			name:     "defaults for zero values",
			cfg:      config.DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Name: "d"},
			maxConns: 4,
			minConns: 1,
			timeout:  10 * time.Second,
			lifetime: time.Hour,
		},
		{
			name: "explicit values",
			cfg: config.DatabaseConfig{
				Host: "db", Port: 5433, User: "u", Password: "p", Name: "d",
				PoolSize: 20, ConnectTimeout: 3 * time.Second, MaxConnLifetime: 5 * time.Minute,
			},
			maxConns: 20,
			minConns: 5,
			timeout:  3 * time.Second,
			lifetime: 5 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := PoolConfig(&tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.maxConns, pc.MaxConns)
			assert.Equal(t, tt.minConns, pc.MinConns)
			assert.Equal(t, tt.timeout, pc.ConnConfig.ConnectTimeout)
			assert.Equal(t, tt.lifetime, pc.MaxConnLifetime)
			assert.Equal(t, tt.cfg.Host, pc.ConnConfig.Host)
		})
	}
}
