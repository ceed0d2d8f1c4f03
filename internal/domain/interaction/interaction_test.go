package interaction_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/vorell/internal/domain/interaction"
	"github.com/okian/vorell/internal/domain/ledger"
	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// racingLedger simulates a concurrent writer winning between the lookup
// and the write.
type racingLedger struct {
	ledger.Ledger
	createErr error
	deleted   int64
	deleteErr error
}

func (r *racingLedger) Create(ctx context.Context, key model.Key) (model.Record, error) {
	if r.createErr != nil {
		return model.Record{}, r.createErr
	}
	return r.Ledger.Create(ctx, key)
}

func (r *racingLedger) Delete(context.Context, model.Kind, string) (int64, error) {
	return r.deleted, r.deleteErr
}

func TestLikeToggler(t *testing.T) {
	Convey("Given a like toggler over an empty ledger", t, func() {
		ctx := context.Background()
		l := ledger.NewMemory()
		toggler := interaction.NewLikeToggler(l)

		Convey("When M1 likes T1 for the first time", func() {
			delta, err := toggler.Toggle(ctx, "M1", "T1", model.GroupWatch)

			Convey("Then the delta is +1 and a record exists", func() {
				So(err, ShouldBeNil)
				So(delta, ShouldEqual, 1)
				ok, _ := l.Exists(ctx, model.Key{ActorID: "M1", TargetID: "T1", Kind: model.KindLike, Group: model.GroupWatch})
				So(ok, ShouldBeTrue)
			})

			Convey("And M1 toggles again", func() {
				delta, err := toggler.Toggle(ctx, "M1", "T1", model.GroupWatch)

				Convey("Then the delta is -1 and the record is gone", func() {
					So(err, ShouldBeNil)
					So(delta, ShouldEqual, -1)
					So(l.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When the same target is liked in two groups", func() {
			d1, err1 := toggler.Toggle(ctx, "M1", "X", model.GroupWatch)
			d2, err2 := toggler.Toggle(ctx, "M1", "X", model.GroupMember)

			Convey("Then the groups are independent", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(d1, ShouldEqual, 1)
				So(d2, ShouldEqual, 1)
			})
		})

		Convey("When an even number of toggles is applied", func() {
			var sum int64
			for i := 0; i < 6; i++ {
				d, err := toggler.Toggle(ctx, "M2", "T9", model.GroupArticle)
				So(err, ShouldBeNil)
				sum += d
			}

			Convey("Then the deltas cancel out", func() {
				So(sum, ShouldEqual, 0)
				So(l.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestLikeTogglerRaces(t *testing.T) {
	Convey("Given a ledger where another request wins the insert", t, func() {
		ctx := context.Background()
		l := &racingLedger{Ledger: ledger.NewMemory(), createErr: ledger.ErrDuplicate}
		toggler := interaction.NewLikeToggler(l)

		Convey("When the loser toggles", func() {
			delta, err := toggler.Toggle(ctx, "M1", "T1", model.GroupWatch)

			Convey("Then it converges to +1", func() {
				So(err, ShouldBeNil)
				So(delta, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a ledger whose insert fails for another reason", t, func() {
		l := &racingLedger{Ledger: ledger.NewMemory(), createErr: errors.New("connection reset")}
		toggler := interaction.NewLikeToggler(l)

		Convey("When toggling", func() {
			_, err := toggler.Toggle(context.Background(), "M1", "T1", model.GroupWatch)

			Convey("Then ErrCreateFailed wraps the cause", func() {
				So(errors.Is(err, interaction.ErrCreateFailed), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "connection reset")
			})
		})
	})

	Convey("Given a like whose record vanishes before the delete", t, func() {
		ctx := context.Background()
		mem := ledger.NewMemory()
		_, err := mem.Create(ctx, model.Key{ActorID: "M1", TargetID: "T1", Kind: model.KindLike, Group: model.GroupWatch})
		So(err, ShouldBeNil)
		toggler := interaction.NewLikeToggler(&racingLedger{Ledger: mem, deleted: 0})

		Convey("When unliking", func() {
			delta, err := toggler.Toggle(ctx, "M1", "T1", model.GroupWatch)

			Convey("Then ErrToggleFailed is returned and no delta applies", func() {
				So(errors.Is(err, interaction.ErrToggleFailed), ShouldBeTrue)
				So(delta, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a like whose delete errors", t, func() {
		ctx := context.Background()
		mem := ledger.NewMemory()
		_, err := mem.Create(ctx, model.Key{ActorID: "M1", TargetID: "T1", Kind: model.KindLike, Group: model.GroupWatch})
		So(err, ShouldBeNil)
		toggler := interaction.NewLikeToggler(&racingLedger{Ledger: mem, deleteErr: errors.New("timeout")})

		Convey("When unliking", func() {
			_, err := toggler.Toggle(ctx, "M1", "T1", model.GroupWatch)

			Convey("Then ErrDeleteFailed is returned", func() {
				So(errors.Is(err, interaction.ErrDeleteFailed), ShouldBeTrue)
			})
		})
	})

	Convey("Given many concurrent first likes on one tuple", t, func() {
		ctx := context.Background()
		l := ledger.NewMemory()
		toggler := interaction.NewLikeToggler(l)

		var wg sync.WaitGroup
		var plus atomic.Int64
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := toggler.Toggle(ctx, "M1", "T1", model.GroupWatch)
				if err == nil && d == 1 {
					plus.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then at most one like record remains", func() {
			So(l.Size(), ShouldBeLessThanOrEqualTo, 1)
			So(plus.Load(), ShouldBeGreaterThanOrEqualTo, 1)
		})
	})
}

func TestViewRecorder(t *testing.T) {
	Convey("Given a view recorder over an empty ledger", t, func() {
		ctx := context.Background()
		l := ledger.NewMemory()
		recorder := interaction.NewViewRecorder(l)

		Convey("When M1 views T1 twice", func() {
			first, err1 := recorder.Record(ctx, "M1", "T1", model.GroupWatch)
			second, err2 := recorder.Record(ctx, "M1", "T1", model.GroupWatch)

			Convey("Then only the first view is recorded", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldEqual, interaction.Recorded)
				So(second, ShouldEqual, interaction.AlreadySeen)
				So(l.Size(), ShouldEqual, 1)
			})
		})

		Convey("When many views race on one tuple", func() {
			var wg sync.WaitGroup
			var recorded atomic.Int64
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					o, err := recorder.Record(ctx, "M2", "T2", model.GroupMember)
					if err == nil && o == interaction.Recorded {
						recorded.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one is recorded", func() {
				So(recorded.Load(), ShouldEqual, 1)
			})
		})

		Convey("When a concurrent insert wins after the lookup", func() {
			r := interaction.NewViewRecorder(&racingLedger{Ledger: l, createErr: ledger.ErrDuplicate})
			o, err := r.Record(ctx, "M3", "T3", model.GroupWatch)

			Convey("Then it reports AlreadySeen", func() {
				So(err, ShouldBeNil)
				So(o, ShouldEqual, interaction.AlreadySeen)
				So(o.String(), ShouldEqual, "already_seen")
			})
		})

		Convey("When the insert fails", func() {
			r := interaction.NewViewRecorder(&racingLedger{Ledger: l, createErr: errors.New("boom")})
			_, err := r.Record(ctx, "M3", "T3", model.GroupWatch)

			Convey("Then ErrCreateFailed is returned", func() {
				So(errors.Is(err, interaction.ErrCreateFailed), ShouldBeTrue)
			})
		})
	})
}

func TestUnknownGroup(t *testing.T) {
	Convey("Given engines over an empty ledger", t, func() {
		ctx := context.Background()
		l := ledger.NewMemory()

		Convey("When a like or view names an unknown group", func() {
			_, errLike := interaction.NewLikeToggler(l).Toggle(ctx, "M1", "T1", model.Group("POLL"))
			_, errView := interaction.NewViewRecorder(l).Record(ctx, "M1", "T1", model.Group(""))

			Convey("Then both are rejected without touching the ledger", func() {
				So(errors.Is(errLike, interaction.ErrUnknownGroup), ShouldBeTrue)
				So(errors.Is(errView, interaction.ErrUnknownGroup), ShouldBeTrue)
				So(l.Size(), ShouldEqual, 0)
			})
		})
	})
}
