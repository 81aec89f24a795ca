package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"parkly/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentReservation(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	// A lot with a single spot
	lot := &models.ParkingLot{
		Name:     "Single Spot",
		Location: "Downtown",
		Address:  "1 Main St",
		Pincode:  560001,
		Price:    20,
		MaxSpots: 1,
	}
	require.NoError(t, db.CreateLot(ctx, lot))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			// ReserveFirstFree checks and claims the spot inside one transaction
			_, _, rErr := db.ReserveFirstFree(ctx, lot.ID, "racer@example.com", "", "", time.Now())
			results <- rErr
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		}
	}

	assert.Equal(t, 1, successCount, "exactly one reservation must win")

	booked, err := db.CountSpots(ctx, lot.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, booked)

	open, err := db.CountOpenRecords(ctx, "racer@example.com", lot.Name, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, open, "exactly one ledger entry must be opened")
}
