package postgres

import (
	"testing"

	"github.com/andresuchdata/restock/backend-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	tests := map[string]string{
		"":         "postgres",
		"postgres": "postgres",
		"pq":       "postgres",
		"pgx":      "pgx",
	}
	for in, want := range tests {
		got, err := DriverName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := DriverName("mysql")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "db", Port: "5433", User: "chef", Password: "s3cret", DBName: "restaurant", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5433 user=chef password=s3cret dbname=restaurant sslmode=disable", DSN(cfg))
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewDB(&config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}
