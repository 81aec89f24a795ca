package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"parkly/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func createTestLot(t *testing.T, db *DB, name string, price float64, maxSpots int) *models.ParkingLot {
	t.Helper()
	lot := &models.ParkingLot{
		Name:     name,
		Location: "Downtown",
		Address:  "1 Main St",
		Pincode:  560001,
		Price:    price,
		MaxSpots: maxSpots,
	}
	require.NoError(t, db.CreateLot(context.Background(), lot))
	return lot
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.PingContext(context.Background())
	assert.NoError(t, err)
}
