package terradle

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmcvetta/randutil"
	log "github.com/sirupsen/logrus"

	"github.com/terradle/terradle/countries"
	"github.com/terradle/terradle/game"
	"github.com/terradle/terradle/util"
)

// launchDate anchors the daily puzzle number shown to players.
var launchDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

type guessRequest struct {
	Guess string `json:"guess"`
	Date  string `json:"date,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (t *Terradle) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// countriesHandler returns the dataset names, regions, and centroids,
// used by clients for autocomplete and globe pins.
func (t *Terradle) countriesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, t.dataset.Countries())
}

// dailyHandler returns today's puzzle metadata. The answer never leaves
// the server.
func (t *Terradle) dailyHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := requestDate(w, r.URL.Query().Get("date"))

	if !ok {
		return
	}

	day := time.Date(date.Year, time.Month(date.Month), date.Day, 0, 0, 0, 0, time.UTC)

	if day.Before(launchDate) {
		writeError(w, http.StatusBadRequest, "date is before the first puzzle")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":       date.String(),
		"number":     int(day.Sub(launchDate).Hours()/24) + 1,
		"countries":  t.dataset.Len(),
		"maxGuesses": t.config.MaxGuesses,
	})
}

// dailyGuessHandler scores a named guess against the resolved daily
// target. It is stateless; clients keep their own guess history.
func (t *Terradle) dailyGuessHandler(w http.ResponseWriter, r *http.Request) {
	var req guessRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Guess == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, ok := requestDate(w, req.Date)

	if !ok {
		return
	}

	target := game.Resolve(date, t.dataset.Countries())

	guessed, found := t.dataset.Lookup(req.Guess)

	if !found {
		writeError(w, http.StatusNotFound, "unknown country")
		return
	}

	guess := game.ScoreGuess(target, guessed)

	guessesServed.Inc()
	guessTiers.WithLabelValues(string(guess.Tier)).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"date":       date.String(),
		"guess":      guess.Guess,
		"centroid":   guess.Centroid,
		"distanceKm": guess.DistanceKm,
		"tier":       guess.Tier,
		"correct":    guess.Tier == game.TierCorrect,
	})
}

// practiceHandler starts a practice session against a random target.
// Selection is weighted by boundary point count so sprawling countries
// come up more often than micro islands.
func (t *Terradle) practiceHandler(w http.ResponseWriter, r *http.Request) {
	list := t.dataset.Countries()

	choices := make([]randutil.Choice, len(list))

	for i, country := range list {
		choices[i] = randutil.Choice{
			Weight: country.Points(),
			Item:   country,
		}
	}

	choice, err := randutil.WeightedChoice(choices)

	if err != nil {
		log.WithError(err).Error("Unable to pick practice target")
		writeError(w, http.StatusInternalServerError, "unable to start session")
		return
	}

	session := game.NewGame(
		util.RandomSequence(16),
		choice.Item.(*countries.Country),
		t.config.MaxGuesses,
	)

	t.sessions.Add(session.ID, session)

	practiceSessions.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         session.ID,
		"maxGuesses": session.MaxGuesses,
	})
}

// practiceGuessHandler applies a guess to a practice session.
func (t *Terradle) practiceGuessHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := t.sessions.Get(chi.URLParam(r, "id"))

	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	session := v.(*game.Game)

	var req guessRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Guess == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	guessed, found := t.dataset.Lookup(req.Guess)

	if !found {
		writeError(w, http.StatusNotFound, "unknown country")
		return
	}

	// Snapshot the session state under the lock; concurrent guesses on
	// the same session may advance it before the response is built.
	t.sessionLock.Lock()

	guess, err := session.ApplyGuess(guessed)

	state := session.State()
	remaining := session.Remaining()
	lost := session.Finished && !session.Won

	t.sessionLock.Unlock()

	if err != nil {
		if errors.Is(err, game.ErrFinished) {
			writeError(w, http.StatusConflict, "game is finished")
			return
		}

		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	guessesServed.Inc()
	guessTiers.WithLabelValues(string(guess.Tier)).Inc()

	response := map[string]any{
		"guess":      guess.Guess,
		"centroid":   guess.Centroid,
		"distanceKm": guess.DistanceKm,
		"tier":       guess.Tier,
		"correct":    guess.Tier == game.TierCorrect,
		"state":      state,
		"remaining":  remaining,
	}

	// Reveal the answer once the session is lost.
	if lost {
		response["target"] = session.Target.Name
	}

	writeJSON(w, http.StatusOK, response)
}

// hintHandler geolocates the caller and returns only the proximity tier
// between the player's own location and today's target. The distance
// itself stays hidden so the hint cannot be triangulated cheaply.
func (t *Terradle) hintHandler(w http.ResponseWriter, r *http.Request) {
	if t.geo == nil {
		writeError(w, http.StatusNotFound, "geolocation is not configured")
		return
	}

	ip, ok := remoteIP(w, r)

	if !ok {
		return
	}

	city, err := t.geo.City(ip)

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !city.Located() {
		writeError(w, http.StatusNotFound, "unable to geolocate address")
		return
	}

	date, ok := requestDate(w, r.URL.Query().Get("date"))

	if !ok {
		return
	}

	target := game.Resolve(date, t.dataset.Countries())

	_, tier := game.Score(
		city.Location.Latitude, city.Location.Longitude,
		target.Centroid.Lat, target.Centroid.Lon,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"date": date.String(),
		"tier": tier,
	})
}

// geoIPHandler is a debug endpoint exposing the raw city lookup.
func (t *Terradle) geoIPHandler(w http.ResponseWriter, r *http.Request) {
	if t.geo == nil {
		writeError(w, http.StatusNotFound, "geolocation is not configured")
		return
	}

	ip, ok := remoteIP(w, r)

	if !ok {
		return
	}

	city, err := t.geo.City(ip)

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, city)
}

// reloadHandler reloads the dataset and configuration. Requires the
// reload token as a bearer token.
func (t *Terradle) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if t.config.ReloadToken == "" || r.Header.Get("Authorization") != "Bearer "+t.config.ReloadToken {
		writeError(w, http.StatusForbidden, "invalid reload token")
		return
	}

	if t.config.ReloadFunc != nil {
		t.config.ReloadFunc()
	}

	if err := t.ReloadConfig(); err != nil {
		log.WithError(err).Warning("Did not reload configuration due to error")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// requestDate parses an optional YYYY-MM-DD value, defaulting to today.
// Writes a 400 and returns false on a malformed date.
func requestDate(w http.ResponseWriter, value string) (game.Date, bool) {
	if value == "" {
		return game.DateOf(time.Now()), true
	}

	date, err := game.ParseDate(value)

	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return game.Date{}, false
	}

	return date, true
}

func remoteIP(w http.ResponseWriter, r *http.Request) (net.IP, bool) {
	ipStr, _, err := net.SplitHostPort(r.RemoteAddr)

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}

	return net.ParseIP(ipStr), true
}
