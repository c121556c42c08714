package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/rs/xid"

	"github.com/sakif/stampcard/internal/model"
)

func (s *Store) SaveSubmission(ctx context.Context, sub *model.Submission) error {
	if _, err := s.client.Collection(submissionsCollection).Doc(sub.SubmissionID).Set(ctx, sub); err != nil {
		return fmt.Errorf("firestore: saving submission %s: %w", sub.SubmissionID, err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context, recent int) (*model.Stats, error) {
	stats := &model.Stats{RecentUsers: []model.User{}}

	var err error
	if stats.TotalUsers, err = s.count(ctx, s.users().Query); err != nil {
		return nil, err
	}
	if stats.TotalStampCards, err = s.count(ctx, s.stamps().Query); err != nil {
		return nil, err
	}

	docs, err := s.users().OrderBy("createdAt", firestore.Desc).Limit(recent).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore: listing recent users: %w", err)
	}
	for _, doc := range docs {
		u, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		stats.RecentUsers = append(stats.RecentUsers, *u)
	}
	return stats, nil
}

// count runs a server-side COUNT aggregation.
func (s *Store) count(ctx context.Context, q firestore.Query) (int, error) {
	res, err := q.NewAggregationQuery().WithCount("n").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("firestore: counting: %w", err)
	}
	v, ok := res["n"].(*pb.Value)
	if !ok {
		return 0, fmt.Errorf("firestore: unexpected count result %T", res["n"])
	}
	return int(v.GetIntegerValue()), nil
}

type probe struct {
	Message   string    `firestore:"message"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// CheckStore writes, reads and deletes a document in the test collection and
// reports the size of the main collections.
func (s *Store) CheckStore(ctx context.Context) (*model.StoreCheck, error) {
	now := time.Now().UTC()
	check := &model.StoreCheck{
		Backend:     "firestore",
		Project:     s.projectID,
		ProbeID:     "connection-test-" + xid.New().String(),
		Collections: map[string]int{},
		CheckedAt:   now,
	}
	ref := s.client.Collection(probeCollection).Doc(check.ProbeID)

	if _, err := ref.Set(ctx, probe{Message: "store connection test", CreatedAt: now}); err != nil {
		return check, fmt.Errorf("firestore: writing probe: %w", err)
	}
	check.Wrote = true

	if _, err := ref.Get(ctx); err != nil {
		return check, fmt.Errorf("firestore: reading probe: %w", err)
	}
	check.Read = true

	for name, q := range map[string]firestore.Query{
		usersCollection:  s.users().Query,
		stampsCollection: s.stamps().Query,
	} {
		n, err := s.count(ctx, q)
		if err != nil {
			return check, err
		}
		check.Collections[name] = n
	}

	if _, err := ref.Delete(ctx); err != nil {
		return check, fmt.Errorf("firestore: deleting probe: %w", err)
	}
	check.Deleted = true

	return check, nil
}
