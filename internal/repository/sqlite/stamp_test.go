package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/ident"
	"github.com/sakif/stampcard/internal/model"
)

func TestMarkBooth(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestRegistrant(t, db, "switch")

	at := testNow.Add(time.Hour)
	card, err := db.MarkBooth(ctx, user.ID, "booth5", at)
	require.NoError(t, err)

	for _, s := range card.Stamps {
		if s.BoothID == "booth5" {
			assert.True(t, s.Filled)
			require.NotNil(t, s.FilledAt)
			assert.Equal(t, at, *s.FilledAt)
			continue
		}
		assert.False(t, s.Filled, s.BoothID)
		assert.Nil(t, s.FilledAt, s.BoothID)
	}
	assert.Equal(t, at, card.LastUpdated)

	got, err := db.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, at, got.LastActive, "mark touches lastActive in the same write")

	stored, err := db.GetStampCard(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, card, stored)
}

func TestMarkBooth_AlreadyMarked(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestRegistrant(t, db, "apoc")

	first, err := db.MarkBooth(ctx, user.ID, "booth3", testNow.Add(time.Minute))
	require.NoError(t, err)

	second, err := db.MarkBooth(ctx, user.ID, "booth3", testNow.Add(time.Hour))
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeAlreadyMarked, appErr.Code)
	assert.Equal(t, first.Stamps, second.Stamps, "filledAt must not move")
}

func TestMarkBooth_UnknownBooth(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestRegistrant(t, db, "mouse")

	_, err := db.MarkBooth(ctx, user.ID, "booth12", testNow)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	card, err := db.GetStampCard(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, card.Collected())
}

func TestMarkBooth_MissingCard(t *testing.T) {
	db := newTestDB(t)

	_, err := db.MarkBooth(context.Background(), ident.New(), "booth1", testNow)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// Every booth marked concurrently must survive: no lost updates.
func TestMarkBooth_ConcurrentDifferentBooths(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestRegistrant(t, db, "dozer")

	var wg sync.WaitGroup
	errs := make(chan error, model.BoothCount)
	for _, b := range model.Booths() {
		wg.Add(1)
		go func(boothID string) {
			defer wg.Done()
			_, err := db.MarkBooth(ctx, user.ID, boothID, testNow.Add(time.Minute))
			errs <- err
		}(b.ID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	card, err := db.GetStampCard(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, card.Complete())
}

// Only one of many racing scans of the same booth wins.
func TestMarkBooth_ConcurrentSameBooth(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestRegistrant(t, db, "cypher")

	const scans = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
	)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := db.MarkBooth(ctx, user.ID, "booth7", testNow.Add(time.Duration(i)*time.Second))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperror.ErrConflict):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, scans-1, dupes)
}

// =========================================================================
// ADMIN TESTS
// =========================================================================

func TestSaveSubmission(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sub := &model.Submission{SubmissionID: "sub-42", Email: "a@b.com", Source: "middleman-api", ReceivedAt: testNow}
	require.NoError(t, db.SaveSubmission(ctx, sub))

	sub.UserID = "user-1"
	require.NoError(t, db.SaveSubmission(ctx, sub), "saving the same id twice is an upsert")

	var userID string
	require.NoError(t, db.conn.QueryRow(`SELECT user_id FROM submissions WHERE submission_id = ?`, "sub-42").Scan(&userID))
	assert.Equal(t, "user-1", userID)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var last *model.User
	for i, nick := range []string{"aa", "bb", "cc"} {
		u := &model.User{
			ID:         ident.New(),
			Nickname:   nick,
			CreatedAt:  testNow.Add(time.Duration(i) * time.Minute),
			LastActive: testNow,
		}
		require.NoError(t, db.CreateRegistrant(ctx, u, model.NewStampCard(u.ID, u.CreatedAt)))
		last = u
	}

	stats, err := db.Stats(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 3, stats.TotalStampCards)
	require.Len(t, stats.RecentUsers, 2)
	assert.Equal(t, last.ID, stats.RecentUsers[0].ID, "newest first")
	assert.Equal(t, "bb", stats.RecentUsers[1].Nickname)
}

func TestCheckStore(t *testing.T) {
	db := newTestDB(t)
	createTestRegistrant(t, db, "oracle")

	check, err := db.CheckStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", check.Backend)
	assert.True(t, check.Wrote)
	assert.True(t, check.Read)
	assert.True(t, check.Deleted)
	assert.Equal(t, 1, check.Collections["users"])
	assert.Equal(t, 1, check.Collections["stamps"])

	var probes int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM store_probes`).Scan(&probes))
	assert.Zero(t, probes)
}
