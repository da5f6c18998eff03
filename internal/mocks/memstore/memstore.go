// Package memstore is a hand-written in-memory MembershipStore for unit tests.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	apperrors "github.com/target/bulkmove/internal/errors"
)

var _ core.MembershipStore = (*Store)(nil)

// Store keeps collections and memberships in maps. Batches are staged and applied only when the
// WithBatch callback returns nil, mirroring a database transaction.
type Store struct {
	// InsertHook, when set, runs before every InsertMemberships call; a non-nil error aborts it.
	InsertHook func(collectionID string, ids []int64) error
	// LikedCollection names the collection that drives Company.Liked.
	LikedCollection string

	mu          sync.Mutex
	collections map[string]model.Collection
	members     map[string]map[int64]struct{}
	batches     int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		LikedCollection: model.LikedCollectionName,
		collections:     make(map[string]model.Collection),
		members:         make(map[string]map[int64]struct{}),
	}
}

// AddCollection registers a collection with the given members.
func (s *Store) AddCollection(id, name string, members ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[id] = model.Collection{ID: id, Name: name, CreatedAt: time.Now().UTC()}
	set := make(map[int64]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	s.members[id] = set
}

// Members returns the collection's members in ascending order.
func (s *Store) Members(collectionID string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.members[collectionID])
}

// Batches reports how many WithBatch calls committed.
func (s *Store) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

func (s *Store) GetCollection(_ context.Context, id string) (*model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, apperrors.NotFoundf("collection %s not found", id)
	}
	return &c, nil
}

func (s *Store) ListCollections(context.Context) ([]*model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *model.Collection) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) MemberIDsOf(_ context.Context, collectionID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collectionID]; !ok {
		return nil, apperrors.NotFoundf("collection %s not found", collectionID)
	}
	return sortedKeys(s.members[collectionID]), nil
}

func (s *Store) CountMembers(_ context.Context, collectionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[collectionID]), nil
}

func (s *Store) ListMembers(ctx context.Context, opts model.MemberListOptions) (*model.MemberPage, error) {
	coll, err := s.GetCollection(ctx, opts.CollectionID)
	if err != nil {
		return nil, err
	}
	ids := s.Members(opts.CollectionID)
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	start := min(max(opts.Offset, 0), len(ids))
	end := min(start+limit, len(ids))

	liked := s.likedSet()
	companies := make([]model.Company, 0, end-start)
	for _, id := range ids[start:end] {
		_, ok := liked[id]
		companies = append(companies, model.Company{ID: id, Liked: ok})
	}
	return &model.MemberPage{Collection: *coll, Companies: companies, Total: len(ids)}, nil
}

// WithBatch stages writes and applies them only when fn succeeds.
func (s *Store) WithBatch(ctx context.Context, fn func(core.MembershipBatch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &batch{store: s, staged: make(map[string]map[int64]struct{})}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for coll, ids := range tx.staged {
		set := s.members[coll]
		if set == nil {
			set = make(map[int64]struct{})
			s.members[coll] = set
		}
		for id := range ids {
			set[id] = struct{}{}
		}
	}
	s.batches++
	return nil
}

type batch struct {
	store  *Store
	staged map[string]map[int64]struct{}
}

func (b *batch) ExistingMembers(_ context.Context, collectionID string, candidates []int64) (map[int64]struct{}, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	out := make(map[int64]struct{})
	for _, id := range candidates {
		if _, ok := b.store.members[collectionID][id]; ok {
			out[id] = struct{}{}
		}
		if _, ok := b.staged[collectionID][id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (b *batch) InsertMemberships(_ context.Context, collectionID string, ids []int64) (int, error) {
	if hook := b.store.InsertHook; hook != nil {
		if err := hook(collectionID, ids); err != nil {
			return 0, err
		}
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if _, ok := b.store.collections[collectionID]; !ok {
		return 0, &apperrors.AppError{Code: apperrors.ErrCodeForeignKey, Message: "referenced collection does not exist"}
	}
	staged := b.staged[collectionID]
	if staged == nil {
		staged = make(map[int64]struct{})
		b.staged[collectionID] = staged
	}
	for _, id := range ids {
		_, committed := b.store.members[collectionID][id]
		_, pending := staged[id]
		if committed || pending {
			return 0, &apperrors.AppError{
				Code:    apperrors.ErrCodeConflict,
				Message: "duplicate collection membership",
				Field:   "collection_id,company_id",
			}
		}
		staged[id] = struct{}{}
	}
	return len(ids), nil
}

func (s *Store) likedSet() map[int64]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]struct{})
	for id, c := range s.collections {
		if c.Name != s.LikedCollection {
			continue
		}
		for m := range s.members[id] {
			out[m] = struct{}{}
		}
	}
	return out
}

func sortedKeys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
