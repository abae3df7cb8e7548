package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/affinity/internal/app"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/types"
)

// gateScorer counts concurrent scorings.
type gateScorer struct {
	delay    time.Duration
	inFlight int32
	peak     int32
	started  int32
	liveCtx  int32
	scores   map[string]float64
}

func (g *gateScorer) Score(ctx context.Context, _, b model.Profile) (types.Breakdown, error) {
	atomic.AddInt32(&g.started, 1)
	n := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)
	for {
		p := atomic.LoadInt32(&g.peak)
		if n <= p || atomic.CompareAndSwapInt32(&g.peak, p, n) {
			break
		}
	}
	time.Sleep(g.delay)
	if ctx.Err() == nil {
		atomic.AddInt32(&g.liveCtx, 1)
	}
	return types.Breakdown{Total: g.scores[b.ID]}, nil
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler with the default admission limit", t, func() {
		target := model.Profile{ID: "t"}

		Convey("When ranking many slow candidates", func() {
			g := &gateScorer{delay: 5 * time.Millisecond, scores: map[string]float64{}}
			cands := people(60)
			for i, c := range cands {
				g.scores[c.ID] = float64(i%9) / 10
			}
			s := service.NewScheduler(g, 0, 0, nil)
			r, err := s.Rank(context.Background(), target, cands)

			Convey("Then no more than ten score at once", func() {
				So(err, ShouldBeNil)
				So(s.Workers(), ShouldEqual, 10)
				So(atomic.LoadInt32(&g.peak), ShouldBeLessThanOrEqualTo, 10)
				So(atomic.LoadInt32(&g.started), ShouldEqual, 60)
			})

			Convey("And the result is the top ten, descending", func() {
				So(r.Entries, ShouldHaveLength, service.DefaultTopK)
				So(r.Scored, ShouldEqual, 60)
				for i := 1; i < len(r.Entries); i++ {
					So(r.Entries[i-1].Similarity, ShouldBeGreaterThanOrEqualTo, r.Entries[i].Similarity)
				}
				So(r.Entries[0].Similarity, ShouldAlmostEqual, 0.8, 1e-9)
			})
		})

		Convey("When similarities tie", func() {
			g := &gateScorer{scores: map[string]float64{"a": 0.5, "b": 0.7, "c": 0.5, "d": 0.5}}
			cands := []model.Profile{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
			r, err := service.NewScheduler(g, 3, 10, nil).ScoreAll(context.Background(), target, cands)

			Convey("Then tied candidates keep their input order", func() {
				So(err, ShouldBeNil)
				ids := make([]string, len(r.Entries))
				for i, e := range r.Entries {
					ids[i] = e.ProfileID
				}
				So(ids, ShouldResemble, []string{"b", "a", "c", "d"})
			})
		})

		Convey("When the caller cancels mid-ranking", func() {
			g := &gateScorer{delay: 40 * time.Millisecond, scores: map[string]float64{}}
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(15*time.Millisecond, cancel)
			r, err := service.NewScheduler(g, 4, 10, nil).Rank(ctx, target, people(40))

			Convey("Then the finished subset comes back with the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(r.Scored, ShouldBeGreaterThanOrEqualTo, 4)
				So(r.Scored, ShouldBeLessThan, 40)
			})

			Convey("And in-flight scorings were not cancelled", func() {
				So(atomic.LoadInt32(&g.liveCtx), ShouldEqual, atomic.LoadInt32(&g.started))
			})
		})

		Convey("When there are no candidates", func() {
			r, err := service.NewScheduler(&gateScorer{}, 10, 10, nil).Rank(context.Background(), target, nil)
			So(err, ShouldBeNil)
			So(r.Entries, ShouldBeEmpty)
			So(r.TargetID, ShouldEqual, "t")
		})

		Convey("When topK is smaller than the candidate set", func() {
			g := &gateScorer{scores: map[string]float64{}}
			for i := 0; i < 8; i++ {
				g.scores[fmt.Sprintf("p%02d", i)] = float64(i)
			}
			r, err := service.NewScheduler(g, 2, 3, nil).Rank(context.Background(), target, people(8))
			So(err, ShouldBeNil)
			So(r.Entries, ShouldHaveLength, 3)
			So(r.Entries[0].ProfileID, ShouldEqual, "p07")
		})
	})
}
