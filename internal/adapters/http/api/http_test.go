package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/starsim/internal/adapters/http/api"
	"github.com/okian/starsim/internal/adapters/repository"
	service "github.com/okian/starsim/internal/app"
	"github.com/okian/starsim/internal/domain/cutpoint"
	"github.com/okian/starsim/internal/testfixture"
	"github.com/okian/starsim/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var quiet = logger.New(logger.WithWriter(io.Discard))

// newTestServer serves a started service loaded with the fixture.
func newTestServer() (*httptest.Server, *service.Service) {
	store := repository.NewMemStore()
	if err := store.Load(context.Background(), testfixture.Snapshot()); err != nil {
		panic(err)
	}
	svc := service.New(service.WithStore(store), service.WithLogger(quiet))
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	srv := api.NewServer(svc, quiet)
	return httptest.NewServer(srv.Router([]string{"*"})), svc
}

// call performs a request and decodes a JSON response body into out.
func call(ts *httptest.Server, method, path string, body any, out any) int {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			panic(err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		panic(err)
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestContractsAPI(t *testing.T) {
	Convey("Given the API over the fixture", t, func() {
		ts, svc := newTestServer()
		defer ts.Close()
		defer svc.Stop()

		Convey("When listing PDP contracts for 2023", func() {
			var out struct {
				Contracts []struct {
					ContractID string `json:"contract_id"`
				} `json:"contracts"`
			}
			status := call(ts, http.MethodGet, "/contracts?year=2023&plan_type=PDP", nil, &out)
			So(status, ShouldEqual, http.StatusOK)
			So(len(out.Contracts), ShouldEqual, 1)
			So(out.Contracts[0].ContractID, ShouldEqual, "S3333")
		})

		Convey("When the quartile is unknown", func() {
			var e apiError
			status := call(ts, http.MethodGet, "/contracts?quartile=middle", nil, &e)
			So(status, ShouldEqual, http.StatusBadRequest)
			So(e.Code, ShouldEqual, "bad_request")
		})

		Convey("When the year is not a number", func() {
			status := call(ts, http.MethodGet, "/contracts/H1111/latest/measures", nil, nil)
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading a contract's measures", func() {
			var out struct {
				Rating     float64           `json:"rating"`
				PartC      []json.RawMessage `json:"part_c"`
				PartD      []json.RawMessage `json:"part_d"`
				Selectable []string          `json:"selectable"`
			}
			status := call(ts, http.MethodGet, "/contracts/H1111/2023/measures", nil, &out)
			So(status, ShouldEqual, http.StatusOK)
			So(out.Rating, ShouldEqual, 3.5)
			So(len(out.PartC), ShouldEqual, 3)
			So(len(out.PartD), ShouldEqual, 2)
		})

		Convey("When computing a star", func() {
			var out struct {
				StarType   string  `json:"star_type"`
				Raw        float64 `json:"raw"`
				Rounded    float64 `json:"rounded"`
				Disclaimer string  `json:"disclaimer"`
			}
			status := call(ts, http.MethodPost, "/contracts/H1111/2023/stars", map[string]any{"star_type": "overall"}, &out)
			So(status, ShouldEqual, http.StatusOK)
			So(out.StarType, ShouldEqual, "overall")
			So(out.Raw, ShouldAlmostEqual, 35.0/9.0, 1e-9)
			So(out.Rounded, ShouldEqual, 4.0)
			So(out.Disclaimer, ShouldNotBeBlank)
		})

		Convey("When computing a star with overrides", func() {
			var out struct {
				Rounded float64 `json:"rounded"`
			}
			body := map[string]any{
				"star_type": "part_c",
				"overrides": []map[string]any{{"measure": "C-Customer Service", "star": 5}},
			}
			status := call(ts, http.MethodPost, "/contracts/H1111/2023/stars", body, &out)
			So(status, ShouldEqual, http.StatusOK)
			So(out.Rounded, ShouldEqual, 4.5)
		})

		Convey("When the star request is malformed", func() {
			So(call(ts, http.MethodPost, "/contracts/H1111/2023/stars", `{"star_type":"bogus"}`, nil), ShouldEqual, http.StatusBadRequest)
			So(call(ts, http.MethodPost, "/contracts/H1111/2023/stars", `{}`, nil), ShouldEqual, http.StatusBadRequest)
			So(call(ts, http.MethodPost, "/contracts/H1111/2023/stars", `{"star":"overall"}`, nil), ShouldEqual, http.StatusBadRequest)
		})

		Convey("When no rows feed the requested star", func() {
			var e apiError
			status := call(ts, http.MethodPost, "/contracts/H2222/2023/stars", map[string]any{"star_type": "part_d"}, &e)
			So(status, ShouldEqual, http.StatusUnprocessableEntity)
			So(e.Code, ShouldEqual, "insufficient_data")
		})

		Convey("When the contract does not exist", func() {
			var e apiError
			status := call(ts, http.MethodPost, "/contracts/H9999/2023/stars", map[string]any{"star_type": "overall"}, &e)
			So(status, ShouldEqual, http.StatusNotFound)
			So(e.Code, ShouldEqual, "not_found")
		})

		Convey("When asking for recommendations", func() {
			var out struct {
				Recommendations []struct {
					Measure     string   `json:"measure"`
					Penetration *float64 `json:"penetration"`
				} `json:"recommendations"`
			}
			status := call(ts, http.MethodGet, "/contracts/H1111/2023/recommendations?limit=2", nil, &out)
			So(status, ShouldEqual, http.StatusOK)
			So(len(out.Recommendations), ShouldEqual, 2)
			So(out.Recommendations[0].Measure, ShouldEqual, "D-Complaints about the Drug Plan")
			So(*out.Recommendations[0].Penetration, ShouldAlmostEqual, 250.0/3.0, 1e-9)
		})

		Convey("When asking for a cut-point trend", func() {
			var out struct {
				Trend []struct {
					Star int `json:"star"`
				} `json:"trend"`
			}
			status := call(ts, http.MethodGet, "/cutpoints/C-Breast%20Cancer%20Screening/trend", nil, &out)
			So(status, ShouldEqual, http.StatusOK)
			So(len(out.Trend), ShouldEqual, 4)

			So(call(ts, http.MethodGet, "/cutpoints/C-Unknown/trend?pdp=true", nil, nil), ShouldEqual, http.StatusNotFound)
			So(call(ts, http.MethodGet, "/cutpoints/C-Unknown/trend?pdp=maybe", nil, nil), ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a measure name carries parentheses", func() {
			const supd = "D-Statin Use in Persons with Diabetes (SUPD)"
			snap := testfixture.Snapshot()
			snap.CutPoints = append(snap.CutPoints, cutpoint.CutPoint{
				Measure: supd, Year: 2023, Star: 3, Lower: 80, Upper: 86, HigherIsBetter: true,
			})
			_, err := svc.LoadSnapshot(context.Background(), snap)
			So(err, ShouldBeNil)

			var out struct {
				Trend []cutpoint.StarTrend `json:"trend"`
			}
			status := call(ts, http.MethodGet, "/cutpoints/D-Statin%20Use%20in%20Persons%20with%20Diabetes%20(SUPD)/trend", nil, &out)

			Convey("Then the escaped name still matches its cut points", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(len(out.Trend), ShouldEqual, 4)
				So(out.Trend[2].Points, ShouldResemble, []cutpoint.TrendPoint{{Year: 2023, Upper: 86}})
				So(out.Trend[0].Points, ShouldNotBeNil)
			})
		})

		Convey("When the measure segment is malformed", func() {
			req := httptest.NewRequest(http.MethodGet, "/cutpoints/x/trend", nil)
			req.URL.RawPath = "/cutpoints/%zz/trend"
			rec := httptest.NewRecorder()
			ts.Config.Handler.ServeHTTP(rec, req)

			var body apiError
			So(json.NewDecoder(rec.Body).Decode(&body), ShouldBeNil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(body.Code, ShouldEqual, "bad_request")
		})

		Convey("When asking for a contract's measure trend", func() {
			var out service.MeasureTrend
			status := call(ts, http.MethodGet, "/contracts/H1111/2023/measures/C-Customer%20Service/trend", nil, &out)

			Convey("Then the history and bands come back together", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(out.Measure, ShouldEqual, "C-Customer Service")
				So(len(out.History), ShouldEqual, 2)
				So(*out.History[1].Score, ShouldEqual, 85)
				So(len(out.Bands), ShouldEqual, 4)
			})

			Convey("And unknown contracts or measures are not found", func() {
				So(call(ts, http.MethodGet, "/contracts/H9999/2023/measures/C-Customer%20Service/trend", nil, nil), ShouldEqual, http.StatusNotFound)
				So(call(ts, http.MethodGet, "/contracts/S3333/2023/measures/C-Customer%20Service/trend", nil, nil), ShouldEqual, http.StatusNotFound)
				So(call(ts, http.MethodGet, "/contracts/H1111/twenty/measures/C-Customer%20Service/trend", nil, nil), ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When recomputing a year in batch", func() {
			var out struct {
				Results []service.BatchResult `json:"results"`
			}
			status := call(ts, http.MethodPost, "/batch/stars?year=2023", nil, &out)
			So(status, ShouldEqual, http.StatusOK)
			So(len(out.Results), ShouldEqual, 3)
			So(out.Results[1].Comparisons[0].Rounded, ShouldEqual, 5.0)

			So(call(ts, http.MethodPost, "/batch/stars", nil, nil), ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSessionsAPI(t *testing.T) {
	Convey("Given the API over the fixture", t, func() {
		ts, svc := newTestServer()
		defer ts.Close()
		defer svc.Stop()

		var created struct {
			SessionID string `json:"session_id"`
		}
		So(call(ts, http.MethodPost, "/sessions", nil, &created), ShouldEqual, http.StatusCreated)
		So(created.SessionID, ShouldNotBeBlank)
		base := "/sessions/" + created.SessionID

		Convey("When an override is set and simulated", func() {
			So(call(ts, http.MethodPut, base+"/overrides", map[string]any{"measure": "C-Customer Service", "star": 5}, nil), ShouldEqual, http.StatusOK)

			var sim struct {
				Comparisons []struct {
					StarType string  `json:"star_type"`
					Rounded  float64 `json:"rounded"`
					Actual   float64 `json:"actual"`
				} `json:"comparisons"`
			}
			status := call(ts, http.MethodGet, base+"/simulate/H1111/2023", nil, &sim)

			Convey("Then the simulated stars sit next to the published ones", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(len(sim.Comparisons), ShouldEqual, 3)
				So(sim.Comparisons[0].StarType, ShouldEqual, "part_c")
				So(sim.Comparisons[0].Rounded, ShouldEqual, 4.5)
				So(sim.Comparisons[0].Actual, ShouldEqual, 3.5)
			})

			Convey("And the override is listed until cleared", func() {
				var list struct {
					Overrides []map[string]any `json:"overrides"`
				}
				So(call(ts, http.MethodGet, base+"/overrides", nil, &list), ShouldEqual, http.StatusOK)
				So(len(list.Overrides), ShouldEqual, 1)

				So(call(ts, http.MethodDelete, base+"/overrides", nil, nil), ShouldEqual, http.StatusNoContent)
				So(call(ts, http.MethodGet, base+"/overrides", nil, &list), ShouldEqual, http.StatusOK)
				So(list.Overrides, ShouldBeEmpty)
			})
		})

		Convey("When the override star is out of range", func() {
			status := call(ts, http.MethodPut, base+"/overrides", map[string]any{"measure": "C-Customer Service", "star": 7}, nil)
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the session is dropped", func() {
			So(call(ts, http.MethodDelete, base, nil, nil), ShouldEqual, http.StatusNoContent)

			Convey("Then it can no longer be used", func() {
				So(call(ts, http.MethodDelete, base, nil, nil), ShouldEqual, http.StatusNotFound)
				So(call(ts, http.MethodGet, base+"/simulate/H1111/2023", nil, nil), ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestCorrelationsAPI(t *testing.T) {
	Convey("Given the API over the fixture", t, func() {
		ts, svc := newTestServer()
		defer ts.Close()
		defer svc.Stop()

		Convey("When two series are posted", func() {
			var out struct {
				PearsonR float64 `json:"pearson_r"`
				N        int     `json:"n"`
			}
			status := call(ts, http.MethodPost, "/correlations", `{"x":[1,2,3,null],"y":[2,4,6,8]}`, &out)
			So(status, ShouldEqual, http.StatusOK)
			So(out.N, ShouldEqual, 3)
			So(out.PearsonR, ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("When the series lengths differ", func() {
			status := call(ts, http.MethodPost, "/correlations", `{"x":[1,2],"y":[1]}`, nil)
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a target is posted with predictors", func() {
			var out struct {
				Reports []struct {
					Predictor string `json:"predictor"`
					Error     string `json:"error"`
				} `json:"reports"`
			}
			body := `{"target":[1,2,3,4],"predictors":{"up":[2,4,6,9],"flat":[1,1,1,1]}}`
			So(call(ts, http.MethodPost, "/correlations", body, &out), ShouldEqual, http.StatusOK)
			So(len(out.Reports), ShouldEqual, 2)
			So(out.Reports[0].Predictor, ShouldEqual, "up")
			So(out.Reports[1].Error, ShouldNotBeBlank)
		})

		Convey("When a measure is correlated with contract predictors", func() {
			var out struct {
				Reports []struct {
					N int `json:"n"`
				} `json:"reports"`
			}
			body := `{"year":2023,"measure":"C-Customer Service","contract_predictors":{"enrollment":{"H1111":12000,"H2222":3000}}}`
			So(call(ts, http.MethodPost, "/correlations", body, &out), ShouldEqual, http.StatusOK)
			So(out.Reports[0].N, ShouldEqual, 2)
		})

		Convey("When the body names no series", func() {
			So(call(ts, http.MethodPost, "/correlations", `{}`, nil), ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAdminAndHealthAPI(t *testing.T) {
	Convey("Given the API over the fixture", t, func() {
		ts, svc := newTestServer()
		defer ts.Close()
		defer svc.Stop()

		Convey("When a snapshot is posted", func() {
			small := testfixture.Snapshot()
			small.Contracts = small.Contracts[3:]
			small.Rows = small.Rows[10:]

			var counts repository.Counts
			So(call(ts, http.MethodPost, "/admin/snapshots", small, &counts), ShouldEqual, http.StatusOK)
			So(counts, ShouldResemble, repository.Counts{Contracts: 1, Rows: 1, CutPoints: 16})

			Convey("Then the old data is gone", func() {
				So(call(ts, http.MethodGet, "/contracts/H1111/2023/measures", nil, nil), ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When an invalid snapshot is posted", func() {
			bad := testfixture.Snapshot()
			bad.Rows[0].ContractID = "H0000"
			So(call(ts, http.MethodPost, "/admin/snapshots", bad, nil), ShouldEqual, http.StatusBadRequest)
			So(call(ts, http.MethodPost, "/admin/snapshots", `{"contracts":`, nil), ShouldEqual, http.StatusBadRequest)
		})

		Convey("When stats are requested", func() {
			var stats map[string]any
			So(call(ts, http.MethodGet, "/stats", nil, &stats), ShouldEqual, http.StatusOK)
			So(stats["contracts"], ShouldEqual, 4.0)
		})

		Convey("When health is requested", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			Convey("Then the metrics registry is exposed", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, "starsim_engine_active_sessions")
			})
		})

		Convey("When the service has stopped", func() {
			svc.Stop()
			var e apiError
			status := call(ts, http.MethodPost, "/sessions", nil, &e)
			So(status, ShouldEqual, http.StatusServiceUnavailable)
			So(e.Code, ShouldEqual, "unavailable")
		})
	})
}
