package terradle

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/terradle/terradle/game"
	"github.com/terradle/terradle/geo"
)

// Alphaland centroid (1, 1), Gammastan (11, 11), Betania (101, 11).
// 2025-06-15 resolves to index 0 (Alphaland) for a three-country dataset.
const datasetTestJson = `[
  {
    "name": "Alphaland",
    "region": "Europe",
    "polygon": [[0, 0], [0, 2], [2, 2], [2, 0]]
  },
  {
    "name": "Gammastan",
    "region": "Africa",
    "polygon": [[10, 10], [10, 12], [12, 12], [12, 10]]
  },
  {
    "name": "Betania",
    "region": "Asia",
    "polygon": [[100, 10], [100, 12], [102, 12], [102, 10]]
  }
]
`

func writeTestDataset(dir string) string {
	file := filepath.Join(dir, "countries.json")

	Expect(os.WriteFile(file, []byte(datasetTestJson), 0o644)).To(Succeed())

	return file
}

func postJSON(handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	encoded, err := json.Marshal(body)

	Expect(err).To(BeNil())

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.RemoteAddr = "1.2.3.4:5678"

	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	return w
}

func getPath(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "1.2.3.4:5678"

	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any

	Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())

	return out
}

var _ = Describe("Server", func() {
	var (
		app     *Terradle
		handler http.Handler
	)

	BeforeEach(func() {
		app = New(&Config{
			DatasetPath: writeTestDataset(GinkgoT().TempDir()),
			MaxGuesses:  6,
			CacheSize:   16,
			ReloadToken: "sekrit",
		})

		handler = app.Start()
	})

	Context("Daily puzzle", func() {
		It("Should describe the puzzle without revealing the answer", func() {
			w := getPath(handler, "/daily?date=2025-06-15")

			Expect(w.Code).To(Equal(http.StatusOK))

			body := decode(w)

			Expect(body["date"]).To(Equal("2025-06-15"))
			Expect(body["countries"]).To(BeNumerically("==", 3))
			Expect(body["maxGuesses"]).To(BeNumerically("==", 6))
			Expect(body).NotTo(HaveKey("target"))
		})

		It("Should score a correct guess case-insensitively", func() {
			w := postJSON(handler, "/daily/guess", map[string]string{
				"guess": "ALPHALAND",
				"date":  "2025-06-15",
			})

			Expect(w.Code).To(Equal(http.StatusOK))

			body := decode(w)

			Expect(body["correct"]).To(Equal(true))
			Expect(body["tier"]).To(Equal(string(game.TierCorrect)))
			Expect(body["distanceKm"]).To(BeNumerically("==", 0))
		})

		It("Should score a wrong guess with distance and tier", func() {
			w := postJSON(handler, "/daily/guess", map[string]string{
				"guess": "Gammastan",
				"date":  "2025-06-15",
			})

			Expect(w.Code).To(Equal(http.StatusOK))

			body := decode(w)

			Expect(body["correct"]).To(Equal(false))
			Expect(body["tier"]).To(Equal(string(game.TierClose)))
			Expect(body["distanceKm"]).To(BeNumerically("~", 1567.2, 0.5))
		})

		It("Should return 404 for an unknown country", func() {
			w := postJSON(handler, "/daily/guess", map[string]string{
				"guess": "Atlantis",
			})

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("Should return 400 for a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/daily/guess", bytes.NewReader([]byte("{")))

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("Should return 400 for a malformed date", func() {
			w := postJSON(handler, "/daily/guess", map[string]string{
				"guess": "Alphaland",
				"date":  "15/06/2025",
			})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("Should reject dates before the first puzzle", func() {
			w := getPath(handler, "/daily?date=2024-02-29")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)).NotTo(HaveKey("number"))
		})
	})

	Context("Hints", func() {
		var mockProvider *geo.MockProvider

		BeforeEach(func() {
			mockProvider = &geo.MockProvider{}
			app.geo = mockProvider
		})

		It("Should return only the tier from the player's location", func() {
			// Geolocates right on the 2025-06-15 target centroid
			mockProvider.On("City", mock.Anything).Return(&geo.City{
				Country:  geo.Country{IsoCode: "AL"},
				Location: geo.Location{AccuracyRadius: 100, Latitude: 1, Longitude: 1},
			}, nil)

			w := getPath(handler, "/hint?date=2025-06-15")

			Expect(w.Code).To(Equal(http.StatusOK))

			body := decode(w)

			Expect(body["tier"]).To(Equal(string(game.TierCorrect)))
			Expect(body).NotTo(HaveKey("distanceKm"))
		})

		It("Should not score an unresolved lookup as a real location", func() {
			// A MaxMind miss leaves the city zeroed; (0, 0) must not be
			// treated as a mid-Atlantic coordinate.
			mockProvider.On("City", mock.Anything).Return(&geo.City{}, nil)

			w := getPath(handler, "/hint?date=2025-06-15")

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decode(w)).NotTo(HaveKey("tier"))
		})

		It("Should report hints unavailable without a geo database", func() {
			app.geo = nil

			w := getPath(handler, "/hint")

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("Practice sessions", func() {
		It("Should play a session through to a win", func() {
			w := postJSON(handler, "/practice", nil)

			Expect(w.Code).To(Equal(http.StatusOK))

			id := decode(w)["id"].(string)

			Expect(id).NotTo(BeEmpty())

			v, ok := app.sessions.Get(id)

			Expect(ok).To(BeTrue())

			target := v.(*game.Game).Target

			w = postJSON(handler, "/practice/"+id+"/guess", map[string]string{
				"guess": target.Name,
			})

			Expect(w.Code).To(Equal(http.StatusOK))

			body := decode(w)

			Expect(body["correct"]).To(Equal(true))
			Expect(body["state"]).To(Equal("won"))
		})

		It("Should reveal the target once the session is lost", func() {
			w := postJSON(handler, "/practice", nil)

			id := decode(w)["id"].(string)

			v, _ := app.sessions.Get(id)
			session := v.(*game.Game)
			session.MaxGuesses = 1

			// One wrong guess ends a single-guess session
			wrong := "Alphaland"

			if session.Target.Name == wrong {
				wrong = "Gammastan"
			}

			w = postJSON(handler, "/practice/"+id+"/guess", map[string]string{
				"guess": wrong,
			})

			body := decode(w)

			Expect(body["state"]).To(Equal("lost"))
			Expect(body["target"]).To(Equal(session.Target.Name))

			// Further guesses are rejected
			w = postJSON(handler, "/practice/"+id+"/guess", map[string]string{
				"guess": wrong,
			})

			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("Should return 404 for an unknown session", func() {
			w := postJSON(handler, "/practice/nope/guess", map[string]string{
				"guess": "Alphaland",
			})

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("Should keep session state consistent under concurrent guesses", func() {
			w := postJSON(handler, "/practice", nil)

			id := decode(w)["id"].(string)

			v, _ := app.sessions.Get(id)
			session := v.(*game.Game)

			wrong := "Alphaland"

			if session.Target.Name == wrong {
				wrong = "Gammastan"
			}

			var wg sync.WaitGroup

			for i := 0; i < 32; i++ {
				wg.Add(1)

				go func() {
					defer wg.Done()
					defer GinkgoRecover()

					w := postJSON(handler, "/practice/"+id+"/guess", map[string]string{
						"guess": wrong,
					})

					// Late arrivals hit a finished session.
					Expect(w.Code).To(BeElementOf(http.StatusOK, http.StatusConflict))

					if w.Code != http.StatusOK {
						return
					}

					body := decode(w)

					state := body["state"].(string)
					remaining := int(body["remaining"].(float64))

					// Every response must be a coherent snapshot, never a
					// mix of two interleaved guesses.
					if state == "playing" {
						Expect(remaining).To(BeNumerically(">", 0))
						Expect(body).NotTo(HaveKey("target"))
					} else {
						Expect(state).To(Equal("lost"))
						Expect(remaining).To(Equal(0))
						Expect(body["target"]).To(Equal(session.Target.Name))
					}
				}()
			}

			wg.Wait()

			Expect(len(session.Guesses)).To(Equal(session.MaxGuesses))
			Expect(session.State()).To(Equal("lost"))
		})
	})

	Context("Countries", func() {
		It("Should list names, regions, and centroids", func() {
			w := getPath(handler, "/countries.json")

			Expect(w.Code).To(Equal(http.StatusOK))

			var list []map[string]any

			Expect(json.Unmarshal(w.Body.Bytes(), &list)).To(Succeed())
			Expect(len(list)).To(Equal(3))
			Expect(list[0]["name"]).To(Equal("Alphaland"))
			Expect(list[0]["centroid"]).NotTo(BeNil())
		})
	})

	Context("Reload", func() {
		It("Should reject a missing or wrong token", func() {
			w := postJSON(handler, "/reload", nil)

			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("Should reload with the configured token", func() {
			req := httptest.NewRequest(http.MethodPost, "/reload", nil)
			req.Header.Set("Authorization", "Bearer sekrit")

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})
	})
})

var _ = Describe("Filters", func() {
	It("Should restrict the dataset with rules", func() {
		app := New(&Config{
			DatasetPath: writeTestDataset(GinkgoT().TempDir()),
			Filters: []Rule{
				{Field: "region", NotIn: []string{"Asia"}},
			},
		})

		Expect(app.ReloadConfig()).To(Succeed())
		Expect(app.dataset.Len()).To(Equal(2))

		_, ok := app.dataset.Lookup("Betania")

		Expect(ok).To(BeFalse())
	})

	It("Should match single-value rules", func() {
		rule := Rule{Field: "name", Is: "Alphaland"}

		app := New(&Config{
			DatasetPath: writeTestDataset(GinkgoT().TempDir()),
			Filters:     []Rule{rule},
		})

		Expect(app.ReloadConfig()).To(Succeed())
		Expect(app.dataset.Len()).To(Equal(1))
	})
})
