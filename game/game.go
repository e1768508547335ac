package game

import (
	"github.com/pkg/errors"

	"github.com/terradle/terradle/countries"
)

// ErrFinished is returned when a guess is applied to a finished game.
var ErrFinished = errors.New("game is finished")

// Guess is a single scored submission. Records are append-only and
// never mutated after creation.
type Guess struct {
	Target     string          `json:"-"`
	Guess      string          `json:"guess"`
	Centroid   countries.Point `json:"centroid"`
	DistanceKm float64         `json:"distanceKm"`
	Tier       Tier            `json:"tier"`
}

// Game holds the state of one guessing session.
type Game struct {
	ID         string             `json:"id"`
	Target     *countries.Country `json:"-"`
	Guesses    []Guess            `json:"guesses"`
	MaxGuesses int                `json:"maxGuesses"`
	Finished   bool               `json:"finished"`
	Won        bool               `json:"won"`
}

// NewGame creates a session for a fixed target.
func NewGame(id string, target *countries.Country, maxGuesses int) *Game {
	return &Game{
		ID:         id,
		Target:     target,
		MaxGuesses: maxGuesses,
		Guesses:    []Guess{},
	}
}

// ScoreGuess scores a guessed country against a target without touching
// any session state. Both centroids come from the same deterministic
// calculation, so a guess equal to the target scores an exact zero.
func ScoreGuess(target, guessed *countries.Country) Guess {
	distance, tier := Score(
		guessed.Centroid.Lat, guessed.Centroid.Lon,
		target.Centroid.Lat, target.Centroid.Lon,
	)

	return Guess{
		Target:     target.Name,
		Guess:      guessed.Name,
		Centroid:   guessed.Centroid,
		DistanceKm: distance,
		Tier:       tier,
	}
}

// ApplyGuess scores a guess and advances the session state.
// Transitions: playing to won on a correct tier, playing to lost when
// the guess limit is reached.
func (g *Game) ApplyGuess(guessed *countries.Country) (Guess, error) {
	if g.Finished {
		return Guess{}, ErrFinished
	}

	guess := ScoreGuess(g.Target, guessed)

	g.Guesses = append(g.Guesses, guess)

	if guess.Tier == TierCorrect {
		g.Finished = true
		g.Won = true
	} else if len(g.Guesses) >= g.MaxGuesses {
		g.Finished = true
	}

	return guess, nil
}

// State reports a coarse string representation of the session state.
func (g *Game) State() string {
	if g.Finished {
		if g.Won {
			return "won"
		}

		return "lost"
	}

	return "playing"
}

// Remaining returns the number of guesses left in the session.
func (g *Game) Remaining() int {
	if g.Finished {
		return 0
	}

	return g.MaxGuesses - len(g.Guesses)
}
