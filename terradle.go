// Package terradle is a daily country-guessing game server. Players
// submit country names and learn how far each guess lies from a secret
// daily target, bucketed into proximity tiers.
package terradle

import (
	"net/http"
	"sync"

	"github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/terradle/terradle/countries"
	"github.com/terradle/terradle/geo"
	"github.com/terradle/terradle/middleware"
)

var (
	guessesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terradle_guesses",
		Help: "The total number of scored guesses",
	})

	guessTiers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terradle_guess_tiers",
		Help: "Scored guesses by proximity tier",
	}, []string{"tier"})

	practiceSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terradle_practice_sessions",
		Help: "The total number of practice sessions started",
	})
)

// Terradle is our application instance.
type Terradle struct {
	config      *Config
	dataset     *countries.Dataset
	geo         geo.Provider
	sessions    *lru.Cache
	sessionLock sync.Mutex
}

// New creates a new instance of Terradle.
func New(config *Config) *Terradle {
	return &Terradle{
		config: config,
	}
}

// Start registers the routes and loggers, then returns the http.Handler.
func (t *Terradle) Start() http.Handler {
	if err := t.ReloadConfig(); err != nil {
		log.WithError(err).Fatalln("Unable to load configuration")
	}

	log.Info("Setting up routes")

	router := chi.NewRouter()

	router.Use(middleware.RealIP)
	router.Use(logger.Logger("terradle", log.StandardLogger()))

	router.Head("/status", t.statusHandler)
	router.Get("/status", t.statusHandler)
	router.Get("/countries.json", t.countriesHandler)
	router.Get("/daily", t.dailyHandler)
	router.Post("/daily/guess", t.dailyGuessHandler)
	router.Post("/practice", t.practiceHandler)
	router.Post("/practice/{id}/guess", t.practiceGuessHandler)
	router.Get("/hint", t.hintHandler)
	router.Get("/geoip", t.geoIPHandler)
	router.Post("/reload", t.reloadHandler)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	if t.config.BindAddress != "" {
		log.WithField("bind", t.config.BindAddress).Info("Binding to address")

		go http.ListenAndServe(t.config.BindAddress, router)
	}

	return router
}
