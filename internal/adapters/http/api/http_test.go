package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/affinity/internal/adapters/http/api"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/text"
	"github.com/okian/affinity/internal/domain/types"
)

const (
	knownID   = "3f2b6c1e-8a4d-4f5e-9b7a-1c2d3e4f5a6b"
	unknownID = "00000000-0000-4000-8000-000000000000"
	brokenID  = "11111111-1111-4111-8111-111111111111"
)

// mockDeps implements api.Dependencies.
type mockDeps struct {
	lastLimit int
	lastPair  [2]model.Profile
	refreshed int
}

func (m *mockDeps) ComputeRanking(_ context.Context, id string) (types.Ranking, error) {
	switch id {
	case knownID:
		return types.Ranking{
			TargetID: id,
			Entries: []types.Entry{
				{Rank: 1, ProfileID: "b", Similarity: 0.9},
				{Rank: 2, ProfileID: "c", Similarity: 0.4},
			},
			Scored: 2,
		}, nil
	case brokenID:
		return types.Ranking{}, fmt.Errorf("geocode: %w", model.ErrDependency)
	default:
		return types.Ranking{}, fmt.Errorf("profile %s: %w", id, model.ErrNotFound)
	}
}

func (m *mockDeps) RefreshRecommendations(_ context.Context, id string) (types.Ranking, error) {
	if id != knownID {
		return types.Ranking{}, model.ErrNotFound
	}
	m.refreshed++
	return types.Ranking{TargetID: id, Entries: make([]types.Entry, 12), Skipped: 1}, nil
}

func (m *mockDeps) StoredRecommendations(_ context.Context, id string, limit int) ([]types.Entry, error) {
	m.lastLimit = limit
	if id != knownID {
		return nil, model.ErrNotFound
	}
	return []types.Entry{{Rank: 1, ProfileID: "b", Similarity: 0.9}}, nil
}

func (m *mockDeps) ResolvePlace(_ context.Context, name string) (model.Place, error) {
	switch name {
	case "Berlin":
		return model.Place{ID: "p1", CanonicalName: "Berlin", Country: "Germany", Latitude: 52.52, Longitude: 13.405}, nil
	case "Down":
		return model.Place{}, fmt.Errorf("%w: nominatim status 503", model.ErrDependency)
	default:
		return model.Place{}, model.ErrNotFound
	}
}

func (m *mockDeps) PairSimilarity(_ context.Context, a, b model.Profile) (types.Breakdown, error) {
	m.lastPair = [2]model.Profile{a, b}
	return types.Breakdown{City: 1, Profession: 0.8, Total: 0.75}, nil
}

func (m *mockDeps) DescriptionSimilarity(_ context.Context, a, b string) (text.Comparison, error) {
	return text.Comparison{
		Similarity: 0.25,
		A:          text.Prepared{Text: a, Language: "en", Status: text.StatusReady},
		B:          text.Prepared{Status: text.StatusUntranslatable, Language: "xx"},
	}, nil
}

func (m *mockDeps) PrepareText(_ context.Context, s string) (text.Prepared, error) {
	return text.Prepared{Text: strings.ToUpper(s), Language: "de", Status: text.StatusTranslated}, nil
}

type mockStats struct{}

func (mockStats) GetStats(context.Context) map[string]interface{} {
	return map[string]interface{}{"started": true, "workerCount": 10}
}

func newMux(deps *mockDeps, checks map[string]api.HealthCheck) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}, checks).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestRecommendationsRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps, nil)

		Convey("When requesting a live ranking", func() {
			w := do(mux, http.MethodGet, "/recommendations/"+knownID, "")

			Convey("Then it returns the ranked entries", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
				var r types.Ranking
				decodeBody(w, &r)
				So(r.TargetID, ShouldEqual, knownID)
				So(r.Entries, ShouldHaveLength, 2)
				So(r.Entries[0].ProfileID, ShouldEqual, "b")
			})
		})

		Convey("When the id is not a UUID", func() {
			w := do(mux, http.MethodGet, "/recommendations/not-a-uuid", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			var e map[string]string
			decodeBody(w, &e)
			So(e["code"], ShouldEqual, "bad_request")
		})

		Convey("When the profile is unknown", func() {
			w := do(mux, http.MethodGet, "/recommendations/"+unknownID, "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When a dependency fails", func() {
			w := do(mux, http.MethodGet, "/recommendations/"+brokenID, "")
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			var e map[string]string
			decodeBody(w, &e)
			So(e["code"], ShouldEqual, "dependency_failure")
		})

		Convey("When refreshing", func() {
			w := do(mux, http.MethodPost, "/recommendations/"+knownID+"/refresh", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var resp map[string]interface{}
			decodeBody(w, &resp)
			So(resp["stored"], ShouldEqual, 12.0)
			So(resp["skipped"], ShouldEqual, 1.0)
			So(deps.refreshed, ShouldEqual, 1)
		})

		Convey("When refreshing with GET", func() {
			w := do(mux, http.MethodGet, "/recommendations/"+knownID+"/refresh", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When reading stored recommendations", func() {
			w := do(mux, http.MethodGet, "/recommendations/"+knownID+"/stored", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 0)

			w = do(mux, http.MethodGet, "/recommendations/"+knownID+"/stored?limit=3", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 3)
		})

		Convey("When the stored limit is invalid", func() {
			for _, l := range []string{"0", "-1", "abc", "100000"} {
				w := do(mux, http.MethodGet, "/recommendations/"+knownID+"/stored?limit="+l, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When nothing is stored", func() {
			w := do(mux, http.MethodGet, "/recommendations/"+unknownID+"/stored", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPlacesRoute(t *testing.T) {
	Convey("Given an API server", t, func() {
		mux := newMux(&mockDeps{}, nil)

		Convey("A known place resolves", func() {
			w := do(mux, http.MethodGet, "/places?name=Berlin", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var p model.Place
			decodeBody(w, &p)
			So(p.Country, ShouldEqual, "Germany")
		})

		Convey("A missing name is a bad request", func() {
			So(do(mux, http.MethodGet, "/places", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/places?name=%20", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An unknown place is not found", func() {
			So(do(mux, http.MethodGet, "/places?name=Atlantis", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A geocoder outage is a bad gateway", func() {
			So(do(mux, http.MethodGet, "/places?name=Down", "").Code, ShouldEqual, http.StatusBadGateway)
		})
	})
}

func TestSimilarityRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps, nil)

		Convey("When scoring an inline pair", func() {
			body := `{
				"a": {"birth_date": "1990-01-02", "city_name": "Berlin", "profession_label": "Software Engineer", "experience_years": 4, "gender": "man"},
				"b": {"birth_date": "1985-07-30", "city_name": "Potsdam", "profession_label": "Data Scientist", "experience_years": 9}
			}`
			w := do(mux, http.MethodPost, "/similarity", body)

			Convey("Then the breakdown comes back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var b types.Breakdown
				decodeBody(w, &b)
				So(b.Total, ShouldEqual, 0.75)
				So(deps.lastPair[0].CityName, ShouldEqual, "Berlin")
				So(deps.lastPair[1].BirthDate.Year(), ShouldEqual, 1985)
				So(deps.lastPair[0].Gender, ShouldEqual, model.GenderMan)
			})
		})

		Convey("When the pair is invalid", func() {
			cases := []string{
				`{"a": {"city_name": "Berlin", "profession_label": "x"}, "b": {}}`,
				`{"a": {"birth_date": "02/01/1990", "city_name": "Berlin", "profession_label": "x"}, "b": {"birth_date": "1990-01-01", "city_name": "B", "profession_label": "x"}}`,
				`{"a": {"birth_date": "1990-01-01", "city_name": "B", "profession_label": "x", "experience_years": -1}, "b": {"birth_date": "1990-01-01", "city_name": "B", "profession_label": "x"}}`,
				`{"a": {"birth_date": "1990-01-01", "city_name": "B", "profession_label": "x", "gender": "robot"}, "b": {"birth_date": "1990-01-01", "city_name": "B", "profession_label": "x"}}`,
				`{"a": {}, "b": {}, "c": {}}`,
				`{"a": `,
			}
			for _, body := range cases {
				w := do(mux, http.MethodPost, "/similarity", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When probing professions", func() {
			w := do(mux, http.MethodGet, "/similarity/profession?a=Software+Engineer&b=Data+Scientist", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var f map[string]interface{}
			decodeBody(w, &f)
			So(f["factor"], ShouldEqual, "profession")
			So(f["similarity"], ShouldAlmostEqual, 0.8, 1e-9)

			So(do(mux, http.MethodGet, "/similarity/profession?a=x", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When probing ages", func() {
			w := do(mux, http.MethodGet, "/similarity/age?a=1990-05-05&b=1990-05-05", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var f map[string]interface{}
			decodeBody(w, &f)
			So(f["similarity"], ShouldEqual, 1.0)

			So(do(mux, http.MethodGet, "/similarity/age?a=1990-05-05&b=yesterday", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When probing experience", func() {
			w := do(mux, http.MethodGet, "/similarity/experience?a=5&b=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var f map[string]interface{}
			decodeBody(w, &f)
			So(f["similarity"], ShouldEqual, 1.0)

			So(do(mux, http.MethodGet, "/similarity/experience?a=five&b=5", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When comparing descriptions", func() {
			w := do(mux, http.MethodPost, "/similarity/description", `{"a": "go developer", "b": "entwickler"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var c text.Comparison
			decodeBody(w, &c)
			So(c.Similarity, ShouldEqual, 0.25)
			So(c.B.Status, ShouldEqual, text.StatusUntranslatable)
		})

		Convey("When preparing text", func() {
			w := do(mux, http.MethodPost, "/text/prepare", `{"text": "hallo welt"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var p text.Prepared
			decodeBody(w, &p)
			So(p.Status, ShouldEqual, text.StatusTranslated)
			So(p.Text, ShouldEqual, "HALLO WELT")

			So(do(mux, http.MethodPost, "/text/prepare", `{"text": ""}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given an API server with health checks", t, func() {
		var dbErr error
		mux := newMux(&mockDeps{}, map[string]api.HealthCheck{
			"db":    func(context.Context) error { return dbErr },
			"cache": func(context.Context) error { return nil },
		})

		Convey("Healthy checks answer ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var h map[string]interface{}
			decodeBody(w, &h)
			So(h["status"], ShouldEqual, "ok")
		})

		Convey("A failing check degrades health", func() {
			dbErr = errors.New("database is locked")
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, "database is locked")
		})

		Convey("Metrics are exposed", func() {
			_ = do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "affinity_")
		})

		Convey("Stats are exposed", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var s map[string]interface{}
			decodeBody(w, &s)
			So(s["started"], ShouldEqual, true)
		})

		Convey("A client request id is echoed back", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			req.Header.Set("X-Request-ID", knownID)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Header().Get("X-Request-ID"), ShouldEqual, knownID)
		})
	})

	Convey("Registering on a nil mux panics", t, func() {
		So(func() {
			api.NewServer(&mockDeps{}, mockStats{}, nil).Register(context.Background(), nil)
		}, ShouldPanic)
	})
}
