package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/vorell/internal/domain/ledger"
	"github.com/okian/vorell/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func likeKey(actor, target string) model.Key {
	return model.Key{ActorID: actor, TargetID: target, Kind: model.KindLike, Group: model.GroupWatch}
}

func TestMemoryLedger(t *testing.T) {
	Convey("Given a new in-memory ledger", t, func() {
		ctx := context.Background()
		l := ledger.NewMemory()

		Convey("When nothing was recorded", func() {
			ok, err := l.Exists(ctx, likeKey("m1", "t1"))
			_, findErr := l.Find(ctx, likeKey("m1", "t1"))

			Convey("Then lookups report absence", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(errors.Is(findErr, ledger.ErrNotFound), ShouldBeTrue)
				So(l.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a record is created", func() {
			rec, err := l.Create(ctx, likeKey("m1", "t1"))
			So(err, ShouldBeNil)

			Convey("Then it can be found by tuple", func() {
				got, err := l.Find(ctx, likeKey("m1", "t1"))
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, rec.ID)
				So(got.Kind, ShouldEqual, model.KindLike)
				So(l.Size(), ShouldEqual, 1)
			})

			Convey("Then a second create of the same tuple is a duplicate", func() {
				_, err := l.Create(ctx, likeKey("m1", "t1"))
				So(errors.Is(err, ledger.ErrDuplicate), ShouldBeTrue)
				So(l.Size(), ShouldEqual, 1)
			})

			Convey("Then other kinds and groups are independent", func() {
				view := likeKey("m1", "t1")
				view.Kind = model.KindView
				_, err := l.Create(ctx, view)
				So(err, ShouldBeNil)

				member := likeKey("m1", "t1")
				member.Group = model.GroupMember
				_, err = l.Create(ctx, member)
				So(err, ShouldBeNil)
				So(l.Size(), ShouldEqual, 3)
			})

			Convey("Then deleting by id removes exactly one record", func() {
				n, err := l.Delete(ctx, model.KindLike, rec.ID)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)

				ok, _ := l.Exists(ctx, likeKey("m1", "t1"))
				So(ok, ShouldBeFalse)

				Convey("And deleting again removes nothing", func() {
					n, err := l.Delete(ctx, model.KindLike, rec.ID)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 0)
				})
			})

			Convey("Then deleting with the wrong kind removes nothing", func() {
				n, err := l.Delete(ctx, model.KindView, rec.ID)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				So(l.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := l.Create(cctx, likeKey("m1", "t1"))

			Convey("Then the call fails without recording", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(l.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestMemoryLedgerOptions(t *testing.T) {
	Convey("Given a ledger with a fixed clock and id generator", t, func() {
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		var tick, seq atomic.Int64
		l := ledger.NewMemory(
			ledger.WithClock(func() time.Time {
				return base.Add(time.Duration(tick.Add(1)) * time.Minute)
			}),
			ledger.WithIDGenerator(func() string {
				return fmt.Sprintf("rec-%d", seq.Add(1))
			}),
		)
		ctx := context.Background()

		Convey("When an actor likes three targets", func() {
			for _, target := range []string{"a", "b", "c"} {
				_, err := l.Create(ctx, likeKey("m1", target))
				So(err, ShouldBeNil)
			}
			_, err := l.Create(ctx, likeKey("m2", "a"))
			So(err, ShouldBeNil)

			Convey("Then records list newest first for that actor only", func() {
				recs := l.Records("m1", model.KindLike)
				So(len(recs), ShouldEqual, 3)
				So(recs[0].TargetID, ShouldEqual, "c")
				So(recs[2].TargetID, ShouldEqual, "a")
				So(recs[2].ID, ShouldEqual, "rec-1")
			})
		})

		Convey("When nil options are passed", func() {
			l := ledger.NewMemory(ledger.WithClock(nil), ledger.WithIDGenerator(nil))
			rec, err := l.Create(ctx, likeKey("m1", "t1"))

			Convey("Then defaults stay in place", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldNotBeEmpty)
				So(rec.CreatedAt.IsZero(), ShouldBeFalse)
			})
		})
	})
}

func TestMemoryLedgerConcurrency(t *testing.T) {
	Convey("Given many goroutines creating the same tuple", t, func() {
		l := ledger.NewMemory()
		ctx := context.Background()
		const workers = 32

		var wg sync.WaitGroup
		var created, dup atomic.Int64
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Create(ctx, likeKey("m1", "t1"))
				switch {
				case err == nil:
					created.Add(1)
				case errors.Is(err, ledger.ErrDuplicate):
					dup.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(created.Load(), ShouldEqual, 1)
			So(dup.Load(), ShouldEqual, workers-1)
			So(l.Size(), ShouldEqual, 1)
		})
	})
}
