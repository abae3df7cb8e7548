package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/affinity/internal/adapters/cache"
	"github.com/okian/affinity/internal/adapters/repository"
	"github.com/okian/affinity/internal/adapters/translation"
	service "github.com/okian/affinity/internal/app"
	"github.com/okian/affinity/internal/domain/geo"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/scoring"
	"github.com/okian/affinity/internal/domain/text"
)

// atlas geocodes a handful of known cities and counts lookups.
type atlas struct {
	mu    sync.Mutex
	calls map[string]int
	down  atomic.Bool
}

var cities = map[string]geo.Geocoded{ //nolint:gochecknoglobals // test fixture
	"Berlin":  {Address: "Berlin, Germany", Latitude: 52.52, Longitude: 13.405},
	"Potsdam": {Address: "Potsdam, Brandenburg, Germany", Latitude: 52.3906, Longitude: 13.0645},
	"Munich":  {Address: "Munich, Bavaria, Germany", Latitude: 48.1351, Longitude: 11.582},
	"Paris":   {Address: "Paris, Ile-de-France, France", Latitude: 48.8566, Longitude: 2.3522},
}

func (a *atlas) Geocode(_ context.Context, name string) (geo.Geocoded, error) {
	a.mu.Lock()
	a.calls[name]++
	a.mu.Unlock()
	if a.down.Load() {
		return geo.Geocoded{}, fmt.Errorf("%w: geocoder down", model.ErrDependency)
	}
	g, ok := cities[name]
	if !ok {
		return geo.Geocoded{}, geo.ErrNoMatch
	}
	return g, nil
}

func (a *atlas) count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

type englishOnly struct{}

func (englishOnly) Detect(context.Context, string) (string, error) { return "en", nil }

func member(id, city, profession, description string, born time.Time, exp float64) model.Profile {
	return model.Profile{
		ID:              id,
		FirstName:       "F" + id,
		Surname:         "S" + id,
		CreatedDate:     time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Description:     description,
		BirthDate:       born,
		Gender:          model.GenderMan,
		CityName:        city,
		ProfessionLabel: profession,
		ExperienceYears: exp,
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service over SQLite, badger and a fake geocoder", t, func() {
		ctx := context.Background()

		store, err := repository.Open(ctx, filepath.Join(t.TempDir(), "affinity.db"))
		So(err, ShouldBeNil)
		defer store.Close()

		kv, err := cache.Open("")
		So(err, ShouldBeNil)
		defer kv.Close()

		geocoder := &atlas{calls: map[string]int{}}
		resolver := geo.NewResolver(store, kv, geocoder)
		preparer := text.NewPreparer(englishOnly{}, translation.Disabled{})
		desc := text.NewSimilarity(preparer)
		agg := scoring.NewAggregator(geo.NewCityScorer(resolver), desc)

		born := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)
		profiles := []model.Profile{
			member("a", "Berlin", "Software Engineer", "python developer building data pipelines", born, 5),
			member("twin", "Berlin", "Software Engineer", "python developer building data pipelines", born, 5),
			member("near", "Potsdam", "Data Scientist", "python engineer", born.AddDate(-3, 0, 0), 7),
			member("far", "Paris", "Project Manager", "agile coach", born.AddDate(-20, 0, 0), 15),
			member("lost", "Atlantis", "Sailor", "boats", born.AddDate(5, 0, 0), 1),
		}
		So(store.UpsertProfiles(ctx, profiles), ShouldBeNil)

		svc := service.New(
			service.WithWorkerCount(3),
			service.WithProfileStore(store),
			service.WithRecommendationStore(store),
			service.WithResolver(resolver),
			service.WithPlaceCounter(store),
			service.WithScorer(agg),
			service.WithTextAnalyzer(desc),
			service.WithTextPreparer(preparer),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When ranking a profile", func() {
			r, err := svc.ComputeRanking(ctx, "a")
			So(err, ShouldBeNil)

			Convey("Then an identical profile scores 1.0 and ranks first", func() {
				So(r.Entries[0].ProfileID, ShouldEqual, "twin")
				So(r.Entries[0].Similarity, ShouldAlmostEqual, 1.0, 1e-9)
			})

			Convey("And an unresolvable city only zeroes the city factor", func() {
				So(r.Skipped, ShouldEqual, 0)
				So(r.Entries, ShouldHaveLength, 4)
			})

			Convey("And each city was geocoded exactly once", func() {
				So(geocoder.count("Berlin"), ShouldEqual, 1)
				So(geocoder.count("Potsdam"), ShouldEqual, 1)
				So(geocoder.count("Paris"), ShouldEqual, 1)

				_, err := svc.ComputeRanking(ctx, "near")
				So(err, ShouldBeNil)
				So(geocoder.count("Berlin"), ShouldEqual, 1)
			})

			Convey("And the unresolvable city left no place row", func() {
				n, err := store.CountPlaces(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				So(svc.GetStats(ctx)["totalPlaces"], ShouldEqual, 3)
			})
		})

		Convey("When refreshing and reading stored recommendations", func() {
			_, err := svc.RefreshRecommendations(ctx, "a")
			So(err, ShouldBeNil)

			entries, err := svc.StoredRecommendations(ctx, "a", 2)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
			So(entries[0].ProfileID, ShouldEqual, "twin")

			Convey("Then a second refresh replaces the snapshot", func() {
				_, err := svc.RefreshRecommendations(ctx, "a")
				So(err, ShouldBeNil)
				all, err := svc.StoredRecommendations(ctx, "a", 100)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 4)
			})
		})

		Convey("When resolving a place twice", func() {
			first, err := svc.ResolvePlace(ctx, "Munich")
			So(err, ShouldBeNil)
			second, err := svc.ResolvePlace(ctx, "Munich")
			So(err, ShouldBeNil)

			Convey("Then the same place comes back without a second lookup", func() {
				So(second, ShouldResemble, first)
				So(first.Country, ShouldEqual, "Germany")
				So(geocoder.count("Munich"), ShouldEqual, 1)
			})
		})

		Convey("When the geocoder is down for an unseen city", func() {
			geocoder.down.Store(true)
			_, err := svc.ResolvePlace(ctx, "Munich")

			Convey("Then the failure is a dependency error, not NotFound", func() {
				So(errors.Is(err, model.ErrDependency), ShouldBeTrue)
				So(errors.Is(err, model.ErrNotFound), ShouldBeFalse)
			})
		})
	})
}
