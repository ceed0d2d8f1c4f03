package service_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/okian/vorell/internal/adapters/repository"
	service "github.com/okian/vorell/internal/app"
	"github.com/okian/vorell/internal/domain/ledger"
	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/internal/domain/types"
	"github.com/okian/vorell/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func openStore(t *testing.T) *repository.Store {
	t.Helper()
	s, err := repository.Open(repository.DriverSQLite,
		"file:"+uuid.NewString()+"?mode=memory&cache=shared",
		repository.WithMaxOpenConns(1))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fixture struct {
	svc     *service.Service
	store   *repository.Store
	shop    model.Member
	alice   model.Member
	bob     model.Member
	listing model.Listing
}

func setup(t *testing.T, opts ...service.Option) fixture {
	t.Helper()
	ctx := context.Background()
	store := openStore(t)
	svc := service.New(store, opts...)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)

	shop, err := svc.CreateMember(ctx, model.MemberInput{Nick: "shop", Type: model.MemberStore})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	alice, _ := svc.CreateMember(ctx, model.MemberInput{Nick: "alice"})
	bob, _ := svc.CreateMember(ctx, model.MemberInput{Nick: "bob"})
	listing, err := svc.CreateListing(ctx, shop.ID, model.ListingInput{ModelName: "Daytona", Brand: "Rolex", Price: 30000})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return fixture{svc: svc, store: store, shop: shop, alice: alice, bob: bob, listing: listing}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(openStore(t))

		Convey("Then operations are refused and stats say so", func() {
			_, err := svc.GetListing(context.Background(), "", "x")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats(context.Background())["started"], ShouldBeFalse)
		})

		Convey("When started twice and stopped twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)

			Convey("Then nothing breaks", func() {
				So(func() { svc.Stop(); svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_LikeScenario(t *testing.T) {
	Convey("Given a listing and two members", t, func() {
		ctx := context.Background()
		f := setup(t)

		Convey("When A toggles like three times and B likes in between", func() {
			l, err := f.svc.LikeListing(ctx, f.alice.ID, f.listing.ID)
			So(err, ShouldBeNil)
			So(l.Likes, ShouldEqual, 1)
			So(l.MeLiked, ShouldBeTrue)

			l, err = f.svc.LikeListing(ctx, f.alice.ID, f.listing.ID)
			So(err, ShouldBeNil)
			So(l.Likes, ShouldEqual, 0)
			So(l.MeLiked, ShouldBeFalse)

			_, err = f.svc.LikeListing(ctx, f.bob.ID, f.listing.ID)
			So(err, ShouldBeNil)

			l, err = f.svc.LikeListing(ctx, f.alice.ID, f.listing.ID)
			So(err, ShouldBeNil)

			Convey("Then likes is 2 and both appear in favorites", func() {
				So(l.Likes, ShouldEqual, 2)
				got, _ := f.store.GetListing(ctx, f.listing.ID)
				So(got.Likes, ShouldEqual, 2)

				fa, err := f.svc.Favorites(ctx, f.alice.ID, model.Page{Page: 1, Limit: 10})
				So(err, ShouldBeNil)
				So(fa.Total, ShouldEqual, 1)
				So(fa.Items[0].MeLiked, ShouldBeTrue)
				fb, _ := f.svc.Favorites(ctx, f.bob.ID, model.Page{Page: 1, Limit: 10})
				So(fb.Total, ShouldEqual, 1)
			})
		})

		Convey("When many members like concurrently", func() {
			var ids []string
			for i := 0; i < 8; i++ {
				m, err := f.svc.CreateMember(ctx, model.MemberInput{Nick: uuid.NewString()})
				So(err, ShouldBeNil)
				ids = append(ids, m.ID)
			}
			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = f.svc.LikeListing(ctx, id, f.listing.ID)
				}()
			}
			wg.Wait()

			Convey("Then every like is counted", func() {
				got, _ := f.store.GetListing(ctx, f.listing.ID)
				So(got.Likes, ShouldEqual, 8)
			})
		})

		Convey("When a member likes the store", func() {
			m, err := f.svc.LikeMember(ctx, f.alice.ID, f.shop.ID)

			Convey("Then the member likes counter moves", func() {
				So(err, ShouldBeNil)
				So(m.Likes, ShouldEqual, 1)
				So(m.MeLiked, ShouldBeTrue)
			})
		})
	})
}

func TestService_ViewScenario(t *testing.T) {
	Convey("Given a listing", t, func() {
		ctx := context.Background()
		f := setup(t)

		Convey("When A opens it three times", func() {
			var last model.Listing
			for i := 0; i < 3; i++ {
				l, err := f.svc.GetListing(ctx, f.alice.ID, f.listing.ID)
				So(err, ShouldBeNil)
				last = l
			}

			Convey("Then views increased by exactly one", func() {
				So(last.Views, ShouldEqual, 1)
				got, _ := f.store.GetListing(ctx, f.listing.ID)
				So(got.Views, ShouldEqual, 1)

				visited, err := f.svc.Visited(ctx, f.alice.ID, model.Page{Page: 1, Limit: 10})
				So(err, ShouldBeNil)
				So(visited.Total, ShouldEqual, 1)
			})
		})

		Convey("When an anonymous visitor opens it", func() {
			l, err := f.svc.GetListing(ctx, "", f.listing.ID)

			Convey("Then nothing is recorded", func() {
				So(err, ShouldBeNil)
				So(l.Views, ShouldEqual, 0)
			})
		})

		Convey("When members visit the store profile", func() {
			self, err := f.svc.GetMember(ctx, f.shop.ID, f.shop.ID)
			So(err, ShouldBeNil)
			other, err := f.svc.GetMember(ctx, f.alice.ID, f.shop.ID)
			So(err, ShouldBeNil)

			Convey("Then only the foreign visit counts", func() {
				So(self.Views, ShouldEqual, 0)
				So(other.Views, ShouldEqual, 1)
			})
		})
	})
}

func TestService_Listings(t *testing.T) {
	Convey("Given a store with a listing", t, func() {
		ctx := context.Background()
		f := setup(t)

		Convey("Then the store's listings counter is 1", func() {
			m, _ := f.store.GetMember(ctx, f.shop.ID)
			So(m.Listings, ShouldEqual, 1)
		})

		Convey("When a plain user tries to list a watch", func() {
			_, err := f.svc.CreateListing(ctx, f.alice.ID, model.ListingInput{ModelName: "Fake"})

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, service.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When the input is invalid", func() {
			_, errName := f.svc.CreateListing(ctx, f.shop.ID, model.ListingInput{ModelName: "  "})
			_, errPrice := f.svc.CreateListing(ctx, f.shop.ID, model.ListingInput{ModelName: "X", Price: -1})

			Convey("Then ErrInvalidInput is returned", func() {
				So(errors.Is(errName, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errPrice, service.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When the listing is sold", func() {
			_, err := f.svc.LikeListing(ctx, f.alice.ID, f.listing.ID)
			So(err, ShouldBeNil)
			sold, err := f.svc.UpdateListingStatus(ctx, f.shop.ID, f.listing.ID, model.ListingSold)
			So(err, ShouldBeNil)

			Convey("Then the counter drops and the listing leaves public views", func() {
				So(sold.SoldAt, ShouldNotBeNil)
				m, _ := f.store.GetMember(ctx, f.shop.ID)
				So(m.Listings, ShouldEqual, 0)

				_, err := f.svc.GetListing(ctx, f.alice.ID, f.listing.ID)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
				_, err = f.svc.LikeListing(ctx, f.alice.ID, f.listing.ID)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)

				fav, _ := f.svc.Favorites(ctx, f.alice.ID, model.Page{Page: 1, Limit: 10})
				So(fav.Total, ShouldEqual, 0)
			})

			Convey("Then it cannot change status again", func() {
				_, err := f.svc.UpdateListingStatus(ctx, f.shop.ID, f.listing.ID, model.ListingDeleted)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When another member changes the status", func() {
			_, err := f.svc.UpdateListingStatus(ctx, f.alice.ID, f.listing.ID, model.ListingDeleted)

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, service.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When moving back to IN_STOCK", func() {
			_, err := f.svc.UpdateListingStatus(ctx, f.shop.ID, f.listing.ID, model.ListingInStock)

			Convey("Then the input is rejected", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}

func TestService_MembersAndLimits(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		f := setup(t, service.WithMaxPageLimit(5), service.WithMaxLeaderboardLimit(3))

		Convey("When a nick is reused", func() {
			_, err := f.svc.CreateMember(ctx, model.MemberInput{Nick: "alice"})

			Convey("Then ErrNickTaken is returned", func() {
				So(errors.Is(err, service.ErrNickTaken), ShouldBeTrue)
			})
		})

		Convey("When the member type is unknown", func() {
			_, err := f.svc.CreateMember(ctx, model.MemberInput{Nick: "eve", Type: "ROBOT"})

			Convey("Then ErrInvalidInput is returned", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When a blocked member is requested", func() {
			So(f.store.SetMemberStatus(ctx, f.bob.ID, model.MemberBlocked), ShouldBeNil)
			_, err := f.svc.GetMember(ctx, f.alice.ID, f.bob.ID)

			Convey("Then it is not found", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a store withdraws", func() {
			So(f.store.SetRank(ctx, model.EntityMember, f.shop.ID, 9), ShouldBeNil)
			_, errOther := f.svc.WithdrawMember(ctx, f.alice.ID, f.shop.ID)
			m, err := f.svc.WithdrawMember(ctx, f.shop.ID, f.shop.ID)

			Convey("Then only its own request counts and it leaves the board", func() {
				So(errors.Is(errOther, service.ErrForbidden), ShouldBeTrue)
				So(err, ShouldBeNil)
				So(m.Status, ShouldEqual, model.MemberDeleted)

				_, err := f.svc.GetMember(ctx, "", f.shop.ID)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
				stores, err := f.svc.TopStores(ctx, 3)
				So(err, ShouldBeNil)
				So(stores, ShouldBeEmpty)
				_, err = f.svc.WithdrawMember(ctx, f.shop.ID, f.shop.ID)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When pagination is out of range", func() {
			_, errPage := f.svc.Favorites(ctx, f.alice.ID, model.Page{Page: 0, Limit: 1})
			_, errLimit := f.svc.Visited(ctx, f.alice.ID, model.Page{Page: 1, Limit: 6})
			_, errTop := f.svc.TopListings(ctx, 4)
			_, errHuge := f.svc.Visited(ctx, f.alice.ID, model.Page{Page: 1 << 62, Limit: 4})

			Convey("Then the input is rejected", func() {
				So(errors.Is(errHuge, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errPage, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errLimit, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errTop, service.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When the listing board is read concurrently", func() {
			So(f.store.SetRank(ctx, model.EntityListing, f.listing.ID, 7), ShouldBeNil)
			results := make([][]types.Entry, 16)
			errs := make([]error, len(results))
			var wg sync.WaitGroup
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = f.svc.TopListings(ctx, 2)
					if len(results[i]) > 0 {
						results[i][0].Name = "mine"
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every caller gets its own copy", func() {
				for i := range results {
					So(errs[i], ShouldBeNil)
					So(results[i], ShouldHaveLength, 1)
					So(results[i][0].Rank, ShouldEqual, 7)
				}
				fresh, err := f.svc.TopListings(ctx, 2)
				So(err, ShouldBeNil)
				So(fresh[0].Name, ShouldEqual, "Daytona")
			})

			Convey("Then a caller that already left does not fail the shared read", func() {
				gone, stop := context.WithCancel(ctx)
				stop()
				entries, err := f.svc.TopListings(gone, 2)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].Rank, ShouldEqual, 7)
			})
		})

		Convey("When leaderboards and stats are read", func() {
			So(f.store.SetRank(ctx, model.EntityListing, f.listing.ID, 12), ShouldBeNil)
			top, err := f.svc.TopListings(ctx, 3)
			So(err, ShouldBeNil)
			stores, err := f.svc.TopStores(ctx, 3)
			So(err, ShouldBeNil)
			st := f.svc.GetStats(ctx)

			Convey("Then they reflect the store", func() {
				So(len(top), ShouldEqual, 1)
				So(top[0].Position, ShouldEqual, 1)
				So(top[0].Name, ShouldEqual, "Daytona")
				So(top[0].Rank, ShouldEqual, 12)
				So(len(stores), ShouldEqual, 1)
				So(stores[0].Name, ShouldEqual, "shop")
				So(st["started"], ShouldBeTrue)
				So(st["listingsInStock"], ShouldEqual, int64(1))
				So(st["activeStores"], ShouldEqual, int64(1))
				So(st["activeUsers"], ShouldEqual, int64(2))
			})
		})
	})
}

func TestService_MemoryLedger(t *testing.T) {
	Convey("Given a service on the in-memory ledger", t, func() {
		ctx := context.Background()
		mem := ledger.NewMemory()
		f := setup(t, service.WithLedger(mem))
		second, err := f.svc.CreateListing(ctx, f.shop.ID, model.ListingInput{ModelName: "Nautilus"})
		So(err, ShouldBeNil)

		Convey("When A likes and views both listings", func() {
			for _, id := range []string{f.listing.ID, second.ID} {
				_, err := f.svc.LikeListing(ctx, f.alice.ID, id)
				So(err, ShouldBeNil)
				_, err = f.svc.GetListing(ctx, f.alice.ID, id)
				So(err, ShouldBeNil)
			}

			Convey("Then the ledger holds the records and history pages work", func() {
				So(mem.Size(), ShouldEqual, 4)

				fav, err := f.svc.Favorites(ctx, f.alice.ID, model.Page{Page: 1, Limit: 1})
				So(err, ShouldBeNil)
				So(fav.Total, ShouldEqual, 2)
				So(len(fav.Items), ShouldEqual, 1)

				visited, err := f.svc.Visited(ctx, f.alice.ID, model.Page{Page: 3, Limit: 1})
				So(err, ShouldBeNil)
				So(visited.Total, ShouldEqual, 2)
				So(visited.Items, ShouldBeEmpty)

				_, err = f.svc.Visited(ctx, f.alice.ID, model.Page{Page: 1 << 62, Limit: 4})
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})

			Convey("And one listing is deleted", func() {
				_, err := f.svc.UpdateListingStatus(ctx, f.shop.ID, second.ID, model.ListingDeleted)
				So(err, ShouldBeNil)

				Convey("Then favorites drop it but visited keeps it", func() {
					fav, _ := f.svc.Favorites(ctx, f.alice.ID, model.Page{Page: 1, Limit: 10})
					So(fav.Total, ShouldEqual, 1)
					So(fav.Items[0].ID, ShouldEqual, f.listing.ID)
					visited, _ := f.svc.Visited(ctx, f.alice.ID, model.Page{Page: 1, Limit: 10})
					So(visited.Total, ShouldEqual, 2)
				})
			})
		})
	})
}

// cancelAfterCreate ends the request right after the ledger commits, as a
// client hanging up mid-request would.
type cancelAfterCreate struct {
	ledger.Ledger
	cancel context.CancelFunc
}

func (c cancelAfterCreate) Create(ctx context.Context, key model.Key) (model.Record, error) {
	r, err := c.Ledger.Create(ctx, key)
	c.cancel()
	return r, err
}

func TestService_CancelledRequests(t *testing.T) {
	Convey("Given a request cancelled once its ledger write commits", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mem := ledger.NewMemory()
		f := setup(t, service.WithLedger(cancelAfterCreate{Ledger: mem, cancel: cancel}))
		bg := context.Background()

		Convey("When alice likes the listing", func() {
			l, err := f.svc.LikeListing(ctx, f.alice.ID, f.listing.ID)

			Convey("Then the like still reaches the counter", func() {
				So(err, ShouldBeNil)
				So(l.Likes, ShouldEqual, 1)
				got, _ := f.store.GetListing(bg, f.listing.ID)
				So(got.Likes, ShouldEqual, 1)
			})

			Convey("Then the next toggle unlikes cleanly", func() {
				l, err := f.svc.LikeListing(bg, f.alice.ID, f.listing.ID)
				So(err, ShouldBeNil)
				So(l.Likes, ShouldEqual, 0)
				So(mem.Size(), ShouldEqual, 0)
			})
		})

		Convey("When alice views the listing", func() {
			_, _ = f.svc.GetListing(ctx, f.alice.ID, f.listing.ID)

			Convey("Then the single view is counted", func() {
				got, _ := f.store.GetListing(bg, f.listing.ID)
				So(got.Views, ShouldEqual, 1)
				l, err := f.svc.GetListing(bg, f.alice.ID, f.listing.ID)
				So(err, ShouldBeNil)
				So(l.Views, ShouldEqual, 1)
			})
		})

		Convey("When alice likes the store", func() {
			_, err := f.svc.LikeMember(ctx, f.alice.ID, f.shop.ID)

			Convey("Then the member counter follows the ledger", func() {
				So(err, ShouldBeNil)
				got, _ := f.store.GetMember(bg, f.shop.ID)
				So(got.Likes, ShouldEqual, 1)
			})
		})
	})
}

// failingUserCount fails only the user count, leaving the other stats intact.
type failingUserCount struct {
	*repository.Store
}

func (f failingUserCount) CountMembers(ctx context.Context, typ model.MemberType) (int64, error) {
	if typ == model.MemberUser {
		return 0, errors.New("count unavailable")
	}
	return f.Store.CountMembers(ctx, typ)
}

func TestService_StatsCountFailure(t *testing.T) {
	Convey("Given a store whose user count fails", t, func() {
		var buf bytes.Buffer
		So(logger.InitWithWriter(&buf), ShouldBeNil)
		defer func() { _ = logger.Init() }()

		ctx := context.Background()
		svc := service.New(failingUserCount{Store: openStore(t)})
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		_, err := svc.CreateMember(ctx, model.MemberInput{Nick: "shop", Type: model.MemberStore})
		So(err, ShouldBeNil)

		Convey("When stats are read", func() {
			st := svc.GetStats(ctx)

			Convey("Then the failure is logged and the user count omitted", func() {
				So(st["activeStores"], ShouldEqual, int64(1))
				_, ok := st["activeUsers"]
				So(ok, ShouldBeFalse)
				So(buf.String(), ShouldContainSubstring, "count users failed")
				So(buf.String(), ShouldContainSubstring, "count unavailable")
			})
		})
	})
}
