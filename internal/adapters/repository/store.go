// Package repository persists listings, members and interaction records on
// a SQL database through gorm.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultMaxOpenConns = 20
	defaultMaxIdleConns = 5
	connMaxLifetime     = time.Hour
)

// Store is the counter store: listing and member rows, their counters and
// ranks.
type Store struct {
	db     *gorm.DB
	logger logger.Logger
	now    func() time.Time

	maxOpenConns int
	maxIdleConns int
	sqlDebug     bool
}

// Open connects to the database named by driver and dsn.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("open %q: %w", driver, ErrUnsupportedDB)
	}

	s := newStore(opts)
	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
	if s.sqlDebug {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
		NowFunc: func() time.Time {
			return s.now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(s.maxOpenConns)
	sqlDB.SetMaxIdleConns(s.maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	s.db = db
	s.logger.Info(context.Background(), "database connected",
		logger.String("driver", driver),
		logger.Int("max_open_conns", s.maxOpenConns),
	)
	return s, nil
}

func newStore(opts []Option) *Store {
	s := &Store{
		now:          time.Now,
		maxOpenConns: defaultMaxOpenConns,
		maxIdleConns: defaultMaxIdleConns,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}
	return s
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&memberRow{},
		&listingRow{},
		&likeRow{},
		&viewRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.logger.Info(ctx, "database migrations completed")
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateMember inserts a member with zeroed counters. A taken nick returns
// ErrConflict.
func (s *Store) CreateMember(ctx context.Context, in model.MemberInput) (model.Member, error) {
	now := s.now().UTC()
	row := memberRow{
		ID:        uuid.NewString(),
		Nick:      in.Nick,
		Type:      string(in.Type),
		Status:    string(model.MemberActive),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.Member{}, fmt.Errorf("create member %q: %w", in.Nick, ErrConflict)
		}
		return model.Member{}, fmt.Errorf("create member %q: %w", in.Nick, err)
	}
	return row.toModel(), nil
}

// GetMember loads a member by id.
func (s *Store) GetMember(ctx context.Context, id string) (model.Member, error) {
	var row memberRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return model.Member{}, notFound("member", id, err)
	}
	return row.toModel(), nil
}

// SetMemberStatus changes a member's status.
func (s *Store) SetMemberStatus(ctx context.Context, id string, status model.MemberStatus) error {
	res := s.db.WithContext(ctx).Model(&memberRow{}).Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": s.now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("set member %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateListing inserts an IN_STOCK listing owned by ownerID.
func (s *Store) CreateListing(ctx context.Context, ownerID string, in model.ListingInput) (model.Listing, error) {
	now := s.now().UTC()
	row := listingRow{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		ModelName: in.ModelName,
		Brand:     in.Brand,
		Price:     in.Price,
		Status:    string(model.ListingInStock),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	return row.toModel(), nil
}

// GetListing loads a listing by id.
func (s *Store) GetListing(ctx context.Context, id string) (model.Listing, error) {
	var row listingRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return model.Listing{}, notFound("listing", id, err)
	}
	return row.toModel(), nil
}

// ListingsByIDs loads the listings with the given ids keyed by id. Missing
// ids are absent from the result.
func (s *Store) ListingsByIDs(ctx context.Context, ids []string) (map[string]model.Listing, error) {
	out := make(map[string]model.Listing, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []listingRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r.toModel()
	}
	return out, nil
}

// TransitionListing moves a listing from one status to another. It returns
// ErrConflict when the listing is no longer in the from status.
func (s *Store) TransitionListing(ctx context.Context, id string, from, to model.ListingStatus) (model.Listing, error) {
	now := s.now().UTC()
	updates := map[string]any{"status": string(to), "updated_at": now}
	switch to {
	case model.ListingSold:
		updates["sold_at"] = now
	case model.ListingDeleted:
		updates["removed_at"] = now
	}

	var out model.Listing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&listingRow{}).Where("id = ? AND status = ?", id, string(from)).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		var row listingRow
		if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
			return notFound("listing", id, err)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("listing %s is %s: %w", id, row.Status, ErrConflict)
		}
		out = row.toModel()
		return nil
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("transition listing %s to %s: %w", id, to, err)
	}
	return out, nil
}

// CountListings counts listings in the given status.
func (s *Store) CountListings(ctx context.Context, status model.ListingStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&listingRow{}).Where("status = ?", string(status)).Count(&n).Error
	return n, err
}

// CountMembers counts active members of the given type.
func (s *Store) CountMembers(ctx context.Context, typ model.MemberType) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&memberRow{}).
		Where("type = ? AND status = ?", string(typ), string(model.MemberActive)).Count(&n).Error
	return n, err
}

func notFound(what, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}
