package terradle

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/terradle/terradle/countries"
	"github.com/terradle/terradle/geo"
)

// Config represents our application's configuration.
type Config struct {
	// BindAddress is the address to bind our webserver to.
	BindAddress string `mapstructure:"bind"`

	// DatasetPath is the path to the country dataset (.json or .geojson).
	DatasetPath string `mapstructure:"dataset"`

	// DatasetURL optionally fetches the dataset over https instead of
	// from disk. Takes precedence over DatasetPath when set.
	DatasetURL string `mapstructure:"datasetUrl"`

	// GeoDBPath is the path to the MaxMind GeoLite2 City DB, used for
	// the location hint endpoint. Hints are disabled when empty.
	GeoDBPath string `mapstructure:"geodb"`

	// CacheSize is the number of practice sessions to keep in the LRU cache.
	CacheSize int `mapstructure:"cacheSize"`

	// MaxGuesses is the guess limit for practice sessions.
	MaxGuesses int `mapstructure:"maxGuesses"`

	// ReloadToken is a secret token used for web-based reload.
	ReloadToken string `mapstructure:"reloadToken"`

	// Filters restricts the loaded dataset, e.g. to specific regions.
	Filters []Rule `mapstructure:"filters"`

	// ReloadFunc is called when a reload is done via http api.
	ReloadFunc func()

	// RootCAs is a list of CA certificates, which we parse from Mozilla directly.
	RootCAs *x509.CertPool

	fetchClient *http.Client
}

// SetRootCAs sets the root ca files, and creates the http client for
// dataset downloads.
// This **MUST** be called before the fetch client is used.
func (c *Config) SetRootCAs(cas *x509.CertPool) {
	c.RootCAs = cas

	t := &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs: cas,
		},
	}

	c.fetchClient = &http.Client{
		Transport: t,
		Timeout:   20 * time.Second,
	}
}

// FetchClient returns the dataset download client.
func (c *Config) FetchClient() *http.Client {
	if c.fetchClient == nil {
		return http.DefaultClient
	}

	return c.fetchClient
}

// Rule defines a matching rule on a country record.
// This can be used to exclude regions or single countries from the
// dataset at load time.
type Rule struct {
	Field string   `mapstructure:"field" yaml:"field" json:"field"`
	Is    string   `mapstructure:"is" yaml:"is" json:"is,omitempty"`
	IsNot string   `mapstructure:"is_not" yaml:"is_not" json:"is_not,omitempty"`
	In    []string `mapstructure:"in" yaml:"in" json:"in,omitempty"`
	NotIn []string `mapstructure:"not_in" yaml:"not_in" json:"not_in,omitempty"`
}

// Matches checks a country against the rule.
func (rule Rule) Matches(c *countries.Country) bool {
	var value string

	switch rule.Field {
	case "name":
		value = c.Name
	case "region":
		value = c.Region
	default:
		log.WithField("field", rule.Field).Warning("Unknown filter field")
		return true
	}

	switch {
	case rule.Is != "":
		return value == rule.Is
	case rule.IsNot != "":
		return value != rule.IsNot
	case len(rule.In) > 0:
		return lo.Contains(rule.In, value)
	case len(rule.NotIn) > 0:
		return !lo.Contains(rule.NotIn, value)
	}

	return true
}

// ReloadConfig is called to reload the server's configuration.
func (t *Terradle) ReloadConfig() error {
	log.Info("Loading configuration...")

	// Geo db can be hot-reloaded if the file changed
	if t.geo != nil {
		if err := t.geo.Close(); err != nil {
			return errors.Wrap(err, "unable to close geo database")
		}

		t.geo = nil
	}

	if t.config.GeoDBPath != "" {
		provider, err := geo.NewMaxmindProvider(t.config.GeoDBPath)

		if err != nil {
			return errors.Wrap(err, "unable to open geo database")
		}

		t.geo = provider
	}

	list, err := t.loadDataset()

	if err != nil {
		return errors.Wrap(err, "unable to load dataset")
	}

	if len(t.config.Filters) > 0 {
		list = lo.Filter(list, func(c *countries.Country, _ int) bool {
			for _, rule := range t.config.Filters {
				if !rule.Matches(c) {
					return false
				}
			}

			return true
		})
	}

	if len(list) == 0 {
		return errors.New("dataset is empty")
	}

	t.dataset = countries.NewDataset(list)

	log.WithField("count", t.dataset.Len()).Info("Loaded countries")

	if t.config.CacheSize <= 0 {
		t.config.CacheSize = 1024
	}

	// Refresh session cache if size changed
	if t.sessions == nil {
		t.sessions, err = lru.New(t.config.CacheSize)

		if err != nil {
			return errors.Wrap(err, "unable to create session cache")
		}
	} else {
		t.sessions.Resize(t.config.CacheSize)
	}

	// Purge the cache to ensure no session references a stale dataset
	t.sessions.Purge()

	if t.config.MaxGuesses <= 0 {
		t.config.MaxGuesses = 6
	}

	return nil
}

func (t *Terradle) loadDataset() ([]*countries.Country, error) {
	if t.config.DatasetURL != "" {
		log.WithField("url", t.config.DatasetURL).Info("Fetching dataset")

		return countries.LoadURL(t.config.FetchClient(), t.config.DatasetURL)
	}

	log.WithField("file", t.config.DatasetPath).Info("Loading dataset")

	return countries.LoadFile(t.config.DatasetPath)
}
