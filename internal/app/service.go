// Package service provides the marketplace service that composes the
// interaction engines, the stats editor and the store behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/okian/vorell/internal/adapters/repository"
	"github.com/okian/vorell/internal/domain/interaction"
	"github.com/okian/vorell/internal/domain/ledger"
	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/internal/domain/stats"
	"github.com/okian/vorell/internal/domain/types"
	"github.com/okian/vorell/pkg/logger"
	"github.com/okian/vorell/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxPageLimit        = 100
	defaultMaxLeaderboardLimit = 100
	maxNickLength              = 100
)

// Store is the persistence the service needs.
type Store interface {
	stats.CounterStore
	CreateMember(ctx context.Context, in model.MemberInput) (model.Member, error)
	GetMember(ctx context.Context, id string) (model.Member, error)
	SetMemberStatus(ctx context.Context, id string, status model.MemberStatus) error
	CreateListing(ctx context.Context, ownerID string, in model.ListingInput) (model.Listing, error)
	GetListing(ctx context.Context, id string) (model.Listing, error)
	ListingsByIDs(ctx context.Context, ids []string) (map[string]model.Listing, error)
	TransitionListing(ctx context.Context, id string, from, to model.ListingStatus) (model.Listing, error)
	Favorites(ctx context.Context, actorID string, page model.Page) (model.Listings, error)
	Visited(ctx context.Context, actorID string, page model.Page) (model.Listings, error)
	TopListings(ctx context.Context, n int) ([]model.Listing, error)
	TopStores(ctx context.Context, n int) ([]model.Member, error)
	CountListings(ctx context.Context, status model.ListingStatus) (int64, error)
	CountMembers(ctx context.Context, typ model.MemberType) (int64, error)
}

// history answers favorites and visited queries.
type history interface {
	Favorites(ctx context.Context, actorID string, page model.Page) (model.Listings, error)
	Visited(ctx context.Context, actorID string, page model.Page) (model.Listings, error)
}

// Service implements the API dependencies for the marketplace.
type Service struct {
	mu sync.RWMutex

	store   Store
	ledger  ledger.Ledger
	history history
	likes   *interaction.LikeToggler
	views   *interaction.ViewRecorder
	editor  *stats.Editor

	maxPageLimit        int
	maxLeaderboardLimit int

	// leaderboards coalesces identical concurrent leaderboard reads.
	leaderboards singleflight.Group

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxPageLimit caps the limit of favorites and visited pages.
func WithMaxPageLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageLimit = n
		}
	}
}

// WithMaxLeaderboardLimit caps the size of leaderboard responses.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// WithLedger sets the interaction ledger. Without it the service uses the
// store's SQL ledger when the store provides one.
func WithLedger(l ledger.Ledger) Option {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// New constructs a new Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:               store,
		maxPageLimit:        defaultMaxPageLimit,
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the interaction engines and the stats editor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.ledger == nil {
		sqlStore, ok := s.store.(*repository.Store)
		if !ok {
			return fmt.Errorf("start service: %w: no interaction ledger", ErrInvalidInput)
		}
		s.ledger = sqlStore.Ledger()
	}

	backend := "sql"
	s.history = s.store
	if mem, ok := s.ledger.(*ledger.Memory); ok {
		backend = "memory"
		s.history = &memoryHistory{ledger: mem, store: s.store}
	}

	s.likes = interaction.NewLikeToggler(s.ledger, interaction.WithLogger(s.logger.Named("likes")))
	s.views = interaction.NewViewRecorder(s.ledger, interaction.WithLogger(s.logger.Named("views")))
	s.editor = stats.NewEditor(s.store, stats.WithLogger(s.logger.Named("stats")))

	s.started = true
	s.logger.Info(ctx, "marketplace service started",
		logger.String("ledger", backend),
		logger.Int("maxPageLimit", s.maxPageLimit),
		logger.Int("maxLeaderboardLimit", s.maxLeaderboardLimit),
	)
	return nil
}

// Stop marks the service stopped. Storage is owned by the caller.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "marketplace service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// CreateMember signs up a member. Type defaults to USER.
func (s *Service) CreateMember(ctx context.Context, in model.MemberInput) (model.Member, error) {
	if err := s.ready(); err != nil {
		return model.Member{}, err
	}
	in.Nick = strings.TrimSpace(in.Nick)
	if in.Nick == "" || len(in.Nick) > maxNickLength {
		return model.Member{}, fmt.Errorf("%w: nick must be 1-%d characters", ErrInvalidInput, maxNickLength)
	}
	if in.Type == "" {
		in.Type = model.MemberUser
	}
	if !in.Type.Valid() {
		return model.Member{}, fmt.Errorf("%w: unknown member type %q", ErrInvalidInput, in.Type)
	}

	m, err := s.store.CreateMember(ctx, in)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Member{}, fmt.Errorf("%w: %s", ErrNickTaken, in.Nick)
		}
		return model.Member{}, err
	}
	s.logger.Info(ctx, "member created",
		logger.String("member", m.ID),
		logger.String("type", string(m.Type)),
	)
	return m, nil
}

// GetMember returns an active member. A signed-in visitor other than the
// member itself records a unique view.
func (s *Service) GetMember(ctx context.Context, actorID, memberID string) (model.Member, error) {
	if err := s.ready(); err != nil {
		return model.Member{}, err
	}
	m, err := s.activeMember(ctx, memberID)
	if err != nil {
		return model.Member{}, err
	}
	if actorID == "" {
		return m, nil
	}

	if actorID != memberID {
		outcome, err := s.views.Record(ctx, actorID, memberID, model.GroupMember)
		if err != nil {
			return model.Member{}, err
		}
		if outcome == interaction.Recorded {
			snap, err := s.adjust(ctx, model.EntityMember, memberID, model.CounterViews, 1)
			if err != nil {
				return model.Member{}, err
			}
			m.Views = snap.Counters[model.CounterViews]
		}
	}

	m.MeLiked, err = s.liked(ctx, actorID, memberID, model.GroupMember)
	if err != nil {
		return model.Member{}, err
	}
	return m, nil
}

// LikeMember toggles actorID's like on an active member.
func (s *Service) LikeMember(ctx context.Context, actorID, memberID string) (model.Member, error) {
	if err := s.ready(); err != nil {
		return model.Member{}, err
	}
	m, err := s.activeMember(ctx, memberID)
	if err != nil {
		return model.Member{}, err
	}
	delta, err := s.likes.Toggle(ctx, actorID, memberID, model.GroupMember)
	if err != nil {
		return model.Member{}, err
	}
	snap, err := s.adjust(ctx, model.EntityMember, memberID, model.CounterLikes, delta)
	if err != nil {
		return model.Member{}, err
	}
	m.Likes = snap.Counters[model.CounterLikes]
	m.MeLiked = delta > 0
	return m, nil
}

// WithdrawMember closes actorID's own account. The member stops being
// served and drops out of the store leaderboard; its listings are untouched.
func (s *Service) WithdrawMember(ctx context.Context, actorID, memberID string) (model.Member, error) {
	if err := s.ready(); err != nil {
		return model.Member{}, err
	}
	if actorID != memberID {
		return model.Member{}, fmt.Errorf("%w: members can only withdraw themselves", ErrForbidden)
	}
	m, err := s.activeMember(ctx, memberID)
	if err != nil {
		return model.Member{}, err
	}
	if err := s.store.SetMemberStatus(ctx, memberID, model.MemberDeleted); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Member{}, fmt.Errorf("%w: member %s", ErrNotFound, memberID)
		}
		return model.Member{}, err
	}
	m.Status = model.MemberDeleted
	s.logger.Info(ctx, "member withdrawn",
		logger.String("member", memberID),
		logger.String("type", string(m.Type)),
	)
	return m, nil
}

// CreateListing lists a watch for an active store and bumps the store's
// listings counter.
func (s *Service) CreateListing(ctx context.Context, ownerID string, in model.ListingInput) (model.Listing, error) {
	if err := s.ready(); err != nil {
		return model.Listing{}, err
	}
	in.ModelName = strings.TrimSpace(in.ModelName)
	if in.ModelName == "" {
		return model.Listing{}, fmt.Errorf("%w: model name is required", ErrInvalidInput)
	}
	if in.Price < 0 {
		return model.Listing{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}

	owner, err := s.activeMember(ctx, ownerID)
	if err != nil {
		return model.Listing{}, err
	}
	if owner.Type != model.MemberStore {
		return model.Listing{}, fmt.Errorf("%w: only stores can list watches", ErrForbidden)
	}

	l, err := s.store.CreateListing(ctx, ownerID, in)
	if err != nil {
		return model.Listing{}, err
	}
	if _, err := s.adjust(ctx, model.EntityMember, ownerID, model.CounterListings, 1); err != nil {
		return model.Listing{}, err
	}
	s.logger.Info(ctx, "listing created",
		logger.String("listing", l.ID),
		logger.String("owner", ownerID),
	)
	return l, nil
}

// GetListing returns an IN_STOCK listing and records the visitor's view.
func (s *Service) GetListing(ctx context.Context, actorID, listingID string) (model.Listing, error) {
	if err := s.ready(); err != nil {
		return model.Listing{}, err
	}
	l, err := s.inStockListing(ctx, listingID)
	if err != nil {
		return model.Listing{}, err
	}
	if actorID == "" {
		return l, nil
	}

	outcome, err := s.views.Record(ctx, actorID, listingID, model.GroupWatch)
	if err != nil {
		return model.Listing{}, err
	}
	if outcome == interaction.Recorded {
		snap, err := s.adjust(ctx, model.EntityListing, listingID, model.CounterViews, 1)
		if err != nil {
			return model.Listing{}, err
		}
		l.Views = snap.Counters[model.CounterViews]
	}

	l.MeLiked, err = s.liked(ctx, actorID, listingID, model.GroupWatch)
	if err != nil {
		return model.Listing{}, err
	}
	return l, nil
}

// UpdateListingStatus moves an IN_STOCK listing owned by ownerID to a new
// status. Selling or deleting it decrements the owner's listings counter.
func (s *Service) UpdateListingStatus(ctx context.Context, ownerID, listingID string, status model.ListingStatus) (model.Listing, error) {
	if err := s.ready(); err != nil {
		return model.Listing{}, err
	}
	if !status.Valid() || status == model.ListingInStock {
		return model.Listing{}, fmt.Errorf("%w: cannot move listing to %q", ErrInvalidInput, status)
	}

	l, err := s.inStockListing(ctx, listingID)
	if err != nil {
		return model.Listing{}, err
	}
	if l.OwnerID != ownerID {
		return model.Listing{}, fmt.Errorf("%w: listing %s belongs to another store", ErrForbidden, listingID)
	}

	updated, err := s.store.TransitionListing(ctx, listingID, model.ListingInStock, status)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return model.Listing{}, fmt.Errorf("%w: listing %s", ErrNotFound, listingID)
		}
		return model.Listing{}, err
	}
	if status == model.ListingSold || status == model.ListingDeleted {
		if _, err := s.adjust(ctx, model.EntityMember, ownerID, model.CounterListings, -1); err != nil {
			return model.Listing{}, err
		}
	}
	s.logger.Info(ctx, "listing status changed",
		logger.String("listing", listingID),
		logger.String("status", string(status)),
	)
	return updated, nil
}

// LikeListing toggles actorID's like on an IN_STOCK listing.
func (s *Service) LikeListing(ctx context.Context, actorID, listingID string) (model.Listing, error) {
	if err := s.ready(); err != nil {
		return model.Listing{}, err
	}
	l, err := s.inStockListing(ctx, listingID)
	if err != nil {
		return model.Listing{}, err
	}
	delta, err := s.likes.Toggle(ctx, actorID, listingID, model.GroupWatch)
	if err != nil {
		return model.Listing{}, err
	}
	snap, err := s.adjust(ctx, model.EntityListing, listingID, model.CounterLikes, delta)
	if err != nil {
		return model.Listing{}, err
	}
	l.Likes = snap.Counters[model.CounterLikes]
	l.MeLiked = delta > 0
	return l, nil
}

// Favorites lists the IN_STOCK listings actorID liked, newest first.
func (s *Service) Favorites(ctx context.Context, actorID string, page model.Page) (model.Listings, error) {
	if err := s.checkPage(page); err != nil {
		return model.Listings{}, err
	}
	out, err := s.history.Favorites(ctx, actorID, page)
	if err != nil {
		return model.Listings{}, err
	}
	markLiked(out.Items)
	return out, nil
}

// Visited lists the listings actorID viewed, newest first.
func (s *Service) Visited(ctx context.Context, actorID string, page model.Page) (model.Listings, error) {
	if err := s.checkPage(page); err != nil {
		return model.Listings{}, err
	}
	return s.history.Visited(ctx, actorID, page)
}

// TopListings returns the n best ranked IN_STOCK listings.
func (s *Service) TopListings(ctx context.Context, n int) ([]types.Entry, error) {
	return s.leaderboard(ctx, "listings", n, func(ctx context.Context) ([]types.Entry, error) {
		rows, err := s.store.TopListings(ctx, n)
		if err != nil {
			return nil, err
		}
		entries := make([]types.Entry, len(rows))
		for i, l := range rows {
			entries[i] = types.Entry{ID: l.ID, Name: l.ModelName, Rank: l.Rank}
		}
		return entries, nil
	})
}

// TopStores returns the n best ranked active stores.
func (s *Service) TopStores(ctx context.Context, n int) ([]types.Entry, error) {
	return s.leaderboard(ctx, "stores", n, func(ctx context.Context) ([]types.Entry, error) {
		rows, err := s.store.TopStores(ctx, n)
		if err != nil {
			return nil, err
		}
		entries := make([]types.Entry, len(rows))
		for i, m := range rows {
			entries[i] = types.Entry{ID: m.ID, Name: m.Nick, Rank: m.Rank}
		}
		return entries, nil
	})
}

// leaderboard numbers the entries load returns. Callers asking for the same
// board and size at the same time share one query and get their own copy.
func (s *Service) leaderboard(
	ctx context.Context,
	board string,
	n int,
	load func(context.Context) ([]types.Entry, error),
) ([]types.Entry, error) {
	if err := s.checkLimit(n); err != nil {
		return nil, err
	}
	v, err, _ := s.leaderboards.Do(board+":"+strconv.Itoa(n), func() (any, error) {
		// Shared by every waiting caller, so one caller leaving must not
		// cancel it.
		entries, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return types.Number(entries), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]types.Entry)), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	out := map[string]any{
		"started":             started,
		"maxPageLimit":        s.maxPageLimit,
		"maxLeaderboardLimit": s.maxLeaderboardLimit,
	}
	if !started {
		return out
	}

	listings, err := s.store.CountListings(ctx, model.ListingInStock)
	if err != nil {
		s.logger.Warn(ctx, "count listings failed", logger.Error(err))
	} else {
		out["listingsInStock"] = listings
		metrics.UpdateTotalListings(listings)
	}
	stores, err := s.store.CountMembers(ctx, model.MemberStore)
	if err != nil {
		s.logger.Warn(ctx, "count stores failed", logger.Error(err))
	} else {
		out["activeStores"] = stores
	}
	users, err := s.store.CountMembers(ctx, model.MemberUser)
	if err != nil {
		s.logger.Warn(ctx, "count users failed", logger.Error(err))
	} else {
		out["activeUsers"] = users
		metrics.UpdateTotalMembers(users + stores)
	}
	return out
}

func (s *Service) activeMember(ctx context.Context, id string) (model.Member, error) {
	m, err := s.store.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Member{}, fmt.Errorf("%w: member %s", ErrNotFound, id)
		}
		return model.Member{}, err
	}
	if m.Status != model.MemberActive {
		return model.Member{}, fmt.Errorf("%w: member %s is %s", ErrNotFound, id, m.Status)
	}
	return m, nil
}

func (s *Service) inStockListing(ctx context.Context, id string) (model.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Listing{}, fmt.Errorf("%w: listing %s", ErrNotFound, id)
		}
		return model.Listing{}, err
	}
	if l.Status != model.ListingInStock {
		return model.Listing{}, fmt.Errorf("%w: listing %s is %s", ErrNotFound, id, l.Status)
	}
	return l, nil
}

func (s *Service) liked(ctx context.Context, actorID, targetID string, group model.Group) (bool, error) {
	return s.ledger.Exists(ctx, model.Key{ActorID: actorID, TargetID: targetID, Kind: model.KindLike, Group: group})
}

// adjust applies the counter delta that follows a committed ledger or row
// change. It ignores ctx cancellation: once the change is committed the
// delta has to land, or the counter drifts from the ledger for good.
func (s *Service) adjust(ctx context.Context, entity model.Entity, id, counter string, delta int64) (model.Snapshot, error) {
	snap, err := s.editor.Adjust(context.WithoutCancel(ctx), entity, id, counter, delta)
	if err != nil {
		if errors.Is(err, stats.ErrNotFound) {
			return model.Snapshot{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return model.Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) checkPage(page model.Page) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !page.Valid() || page.Limit > s.maxPageLimit {
		return fmt.Errorf("%w: page must be >= 1 and limit within 1-%d", ErrInvalidInput, s.maxPageLimit)
	}
	if page.Overflows() {
		return fmt.Errorf("%w: page %d is out of range", ErrInvalidInput, page.Page)
	}
	return nil
}

func (s *Service) checkLimit(n int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if n < 1 || n > s.maxLeaderboardLimit {
		return fmt.Errorf("%w: limit must be within 1-%d", ErrInvalidInput, s.maxLeaderboardLimit)
	}
	return nil
}

func markLiked(items []model.Listing) {
	for i := range items {
		items[i].MeLiked = true
	}
}
