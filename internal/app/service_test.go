package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/affinity/internal/app"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/text"
	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type mockProfiles struct {
	profiles map[string]model.Profile
	order    []string
}

func newMockProfiles(ps ...model.Profile) *mockProfiles {
	m := &mockProfiles{profiles: map[string]model.Profile{}}
	for _, p := range ps {
		m.profiles[p.ID] = p
		m.order = append(m.order, p.ID)
	}
	return m
}

func (m *mockProfiles) GetProfile(_ context.Context, id string) (model.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("profile %s: %w", id, model.ErrNotFound)
	}
	return p, nil
}

func (m *mockProfiles) ListProfilesExcluding(_ context.Context, id string) ([]model.Profile, error) {
	out := make([]model.Profile, 0, len(m.order))
	for _, pid := range m.order {
		if pid != id {
			out = append(out, m.profiles[pid])
		}
	}
	return out, nil
}

type mockRecommendations struct {
	mu       sync.Mutex
	rows     map[string][]model.StoredRecommendation
	failWith error
	replaces int32
}

func (m *mockRecommendations) ReplaceForSource(_ context.Context, src string, rows []model.StoredRecommendation) error {
	atomic.AddInt32(&m.replaces, 1)
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[src] = rows
	return nil
}

func (m *mockRecommendations) TopForSource(_ context.Context, src string, limit int) ([]model.StoredRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows[src]
	if len(rows) == 0 {
		return nil, model.ErrNotFound
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type mockResolver struct{}

func (mockResolver) Resolve(_ context.Context, name string) (model.Place, error) {
	if name == "Atlantis" {
		return model.Place{}, model.ErrNotFound
	}
	return model.Place{ID: "p-" + name, CanonicalName: name}, nil
}

// mockScorer scores a pair by the candidate's experience years.
type mockScorer struct {
	delay time.Duration
	fail  map[string]error
	calls int32
}

func (m *mockScorer) Score(_ context.Context, _, b model.Profile) (types.Breakdown, error) {
	atomic.AddInt32(&m.calls, 1)
	time.Sleep(m.delay)
	if err := m.fail[b.ID]; err != nil {
		return types.Breakdown{}, err
	}
	return types.Breakdown{Experience: b.ExperienceYears, Total: b.ExperienceYears / 100}, nil
}

func (m *mockScorer) Weights() types.Weights { return types.DefaultWeights() }

type mockPlaceCounter int

func (m mockPlaceCounter) CountPlaces(context.Context) (int, error) { return int(m), nil }

type mockText struct{}

func (mockText) ScoreDetailed(_ context.Context, a, b string) (float64, text.Prepared, text.Prepared) {
	return 0.5, text.Prepared{Text: a, Status: text.StatusReady}, text.Prepared{Text: b, Status: text.StatusReady}
}

func (mockText) Prepare(_ context.Context, s string) text.Prepared {
	return text.Prepared{Text: s, Language: "en", Status: text.StatusReady}
}

func people(n int) []model.Profile {
	out := make([]model.Profile, n)
	for i := range out {
		out[i] = model.Profile{ID: fmt.Sprintf("p%02d", i), ExperienceYears: float64(i % 7)}
	}
	return out
}

type fixture struct {
	svc    *service.Service
	recs   *mockRecommendations
	scorer *mockScorer
}

func newFixture(n int, opts ...service.Option) fixture {
	recs := &mockRecommendations{rows: map[string][]model.StoredRecommendation{}}
	scorer := &mockScorer{fail: map[string]error{}}
	ids := 0
	base := []service.Option{
		service.WithProfileStore(newMockProfiles(people(n)...)),
		service.WithRecommendationStore(recs),
		service.WithResolver(mockResolver{}),
		service.WithScorer(scorer),
		service.WithTextAnalyzer(mockText{}),
		service.WithTextPreparer(mockText{}),
		service.WithIDGenerator(func() string { ids++; return fmt.Sprintf("row-%d", ids) }),
	}
	return fixture{svc: service.New(append(base, opts...)...), recs: recs, scorer: scorer}
}

func TestService_Start(t *testing.T) {
	Convey("Given a service without collaborators", t, func() {
		svc := service.New()

		Convey("When starting it", func() {
			err := svc.Start(context.Background())

			Convey("Then every missing dependency is reported", func() {
				So(errors.Is(err, service.ErrMissingDependency), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "profiles")
				So(err.Error(), ShouldContainSubstring, "scorer")
			})

			Convey("And operations refuse to run", func() {
				_, err := svc.ComputeRanking(context.Background(), "p00")
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given a fully wired service", t, func() {
		f := newFixture(3)
		So(f.svc.Start(context.Background()), ShouldBeNil)

		Convey("Then starting twice is harmless", func() {
			So(f.svc.Start(context.Background()), ShouldBeNil)
			So(f.svc.GetStats(context.Background())["started"], ShouldEqual, true)
		})

		Convey("When stopped it reports so", func() {
			f.svc.Stop()
			So(f.svc.GetStats(context.Background())["started"], ShouldEqual, false)
			_, err := f.svc.ResolvePlace(context.Background(), "Berlin")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_ComputeRanking(t *testing.T) {
	Convey("Given 30 stored profiles", t, func() {
		f := newFixture(30)
		So(f.svc.Start(context.Background()), ShouldBeNil)
		defer f.svc.Stop()
		ctx := context.Background()

		Convey("When ranking one of them", func() {
			r, err := f.svc.ComputeRanking(ctx, "p03")
			So(err, ShouldBeNil)

			Convey("Then at most ten entries come back best first", func() {
				So(r.Entries, ShouldHaveLength, 10)
				So(r.Scored, ShouldEqual, 29)
				for i := 1; i < len(r.Entries); i++ {
					So(r.Entries[i-1].Similarity, ShouldBeGreaterThanOrEqualTo, r.Entries[i].Similarity)
					So(r.Entries[i].Rank, ShouldEqual, i+1)
				}
			})

			Convey("And the target never ranks itself", func() {
				for _, e := range r.Entries {
					So(e.ProfileID, ShouldNotEqual, "p03")
				}
			})

			Convey("And every candidate was scored once", func() {
				So(atomic.LoadInt32(&f.scorer.calls), ShouldEqual, 29)
			})
		})

		Convey("When the target is unknown", func() {
			_, err := f.svc.ComputeRanking(ctx, "nobody")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the target id is blank", func() {
			_, err := f.svc.ComputeRanking(ctx, "  ")
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When some candidates fail", func() {
			f.scorer.fail["p06"] = model.ErrDependency
			f.scorer.fail["p13"] = model.ErrDependency
			r, err := f.svc.ComputeRanking(ctx, "p00")

			Convey("Then they are skipped and counted", func() {
				So(err, ShouldBeNil)
				So(r.Skipped, ShouldEqual, 2)
				So(r.Scored, ShouldEqual, 27)
				for _, e := range r.Entries {
					So(e.ProfileID, ShouldNotBeIn, "p06", "p13")
				}
			})
		})
	})

	Convey("Given candidates that all fail", t, func() {
		f := newFixture(3)
		So(f.svc.Start(context.Background()), ShouldBeNil)
		f.scorer.fail["p01"] = fmt.Errorf("geocoder: %w", model.ErrDependency)
		f.scorer.fail["p02"] = fmt.Errorf("geocoder: %w", model.ErrDependency)

		Convey("Then the first failure is returned", func() {
			_, err := f.svc.ComputeRanking(context.Background(), "p00")
			So(errors.Is(err, model.ErrDependency), ShouldBeTrue)
		})
	})

	Convey("Given a lone profile", t, func() {
		f := newFixture(1)
		So(f.svc.Start(context.Background()), ShouldBeNil)

		Convey("Then its ranking is empty, not an error", func() {
			r, err := f.svc.ComputeRanking(context.Background(), "p00")
			So(err, ShouldBeNil)
			So(r.Entries, ShouldBeEmpty)
		})
	})
}

func TestService_Refresh(t *testing.T) {
	Convey("Given 15 stored profiles", t, func() {
		f := newFixture(15, service.WithStoredLimit(3))
		So(f.svc.Start(context.Background()), ShouldBeNil)
		ctx := context.Background()

		Convey("When nothing was refreshed yet", func() {
			_, err := f.svc.StoredRecommendations(ctx, "p00", 0)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When refreshing a profile", func() {
			r, err := f.svc.RefreshRecommendations(ctx, "p00")
			So(err, ShouldBeNil)

			Convey("Then every scored candidate is persisted, not only the top ten", func() {
				So(r.Entries, ShouldHaveLength, 14)
				rows := f.recs.rows["p00"]
				So(rows, ShouldHaveLength, 14)
				So(rows[0].ID, ShouldEqual, "row-1")
				So(rows[0].SourceProfileID, ShouldEqual, "p00")
				So(rows[0].Similarity, ShouldEqual, r.Entries[0].Similarity)
			})

			Convey("And stored recommendations use the configured default limit", func() {
				entries, err := f.svc.StoredRecommendations(ctx, "p00", 0)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 3)
				So(entries[0].Rank, ShouldEqual, 1)

				entries, err = f.svc.StoredRecommendations(ctx, "p00", 8)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 8)
			})

			Convey("And stats count the refresh", func() {
				stats := f.svc.GetStats(ctx)
				So(stats["refreshes"], ShouldEqual, int64(1))
				So(stats["lastRefreshRows"], ShouldEqual, int64(14))
				So(stats["weights"], ShouldResemble, types.DefaultWeights())
			})
		})

		Convey("When persisting fails", func() {
			f.recs.failWith = fmt.Errorf("disk: %w", model.ErrPersistence)
			_, err := f.svc.RefreshRecommendations(ctx, "p00")
			So(errors.Is(err, model.ErrPersistence), ShouldBeTrue)
		})

		Convey("When the caller has already gone", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := f.svc.RefreshRecommendations(cctx, "p00")

			Convey("Then no partial snapshot is written", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(atomic.LoadInt32(&f.recs.replaces), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a slow refresh joined by a second caller", t, func() {
		f := newFixture(15)
		f.scorer.delay = 40 * time.Millisecond
		So(f.svc.Start(context.Background()), ShouldBeNil)

		leaderCtx, cancelLeader := context.WithCancel(context.Background())
		defer cancelLeader()

		var leaderErr, joinerErr error
		var joined service.Ranking
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, leaderErr = f.svc.RefreshRecommendations(leaderCtx, "p00")
		}()
		time.Sleep(10 * time.Millisecond)
		go func() {
			defer wg.Done()
			joined, joinerErr = f.svc.RefreshRecommendations(context.Background(), "p00")
		}()
		time.Sleep(10 * time.Millisecond)

		Convey("When the caller that started it cancels", func() {
			cancelLeader()
			wg.Wait()

			Convey("Then only that caller sees the cancellation", func() {
				So(errors.Is(leaderErr, context.Canceled), ShouldBeTrue)
				So(joinerErr, ShouldBeNil)
				So(joined.Entries, ShouldHaveLength, 14)
			})

			Convey("And the shared computation ran once and was persisted", func() {
				So(atomic.LoadInt32(&f.scorer.calls), ShouldEqual, 14)
				So(atomic.LoadInt32(&f.recs.replaces), ShouldEqual, 1)
				f.recs.mu.Lock()
				defer f.recs.mu.Unlock()
				So(f.recs.rows["p00"], ShouldHaveLength, 14)
			})
		})
	})
}

func TestService_Probes(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture(2)
		So(f.svc.Start(context.Background()), ShouldBeNil)
		ctx := context.Background()

		Convey("Places resolve through the resolver", func() {
			p, err := f.svc.ResolvePlace(ctx, "Berlin")
			So(err, ShouldBeNil)
			So(p.CanonicalName, ShouldEqual, "Berlin")
			_, err = f.svc.ResolvePlace(ctx, "Atlantis")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Pairs are scored without being stored", func() {
			b, err := f.svc.PairSimilarity(ctx, model.Profile{ID: "x"}, model.Profile{ID: "y", ExperienceYears: 50})
			So(err, ShouldBeNil)
			So(b.Total, ShouldAlmostEqual, 0.5, 1e-9)
		})

		Convey("Descriptions report both preparations", func() {
			d, err := f.svc.DescriptionSimilarity(ctx, "go developer", "rust developer")
			So(err, ShouldBeNil)
			So(d.Similarity, ShouldEqual, 0.5)
			So(d.A.Status, ShouldEqual, text.StatusReady)
		})

		Convey("Stats omit the place count when no counter is set", func() {
			So(f.svc.GetStats(ctx), ShouldNotContainKey, "totalPlaces")
		})

		Convey("Stats read the place count from the place counter", func() {
			g := newFixture(2, service.WithPlaceCounter(mockPlaceCounter(7)))
			So(g.svc.Start(ctx), ShouldBeNil)
			So(g.svc.GetStats(ctx)["totalPlaces"], ShouldEqual, 7)
		})

		Convey("Text preparation is exposed", func() {
			p, err := f.svc.PrepareText(ctx, "hello there")
			So(err, ShouldBeNil)
			So(p.Language, ShouldEqual, "en")
		})
	})
}
