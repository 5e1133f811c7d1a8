// Package replay loads a fixture file of glucose/treatment/profile history
// and splits it into per-reading ticks for the engine, supporting the byte-identity
// replay property (spec.md §8, Testable Property 5). The JSON-decode shape
// mirrors the field-per-collaborator-document convention the teacher's
// Nightscout client used for its wire types.
package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
)

// Fixture is the on-disk replay input: a full glucose/treatment history
// plus the profile to determine against, so that a replay is a pure
// function of the file's contents.
type Fixture struct {
	Glucose    []models.GlucoseEntry `json:"glucose"`
	Treatments []models.Treatment    `json:"treatments"`
	Profile    *profile.Profile      `json:"profile"`
	CurrentTemp models.TempBasal     `json:"currentTemp"`
}

// Load reads and parses a replay fixture from path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied, not user input
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	if f.Profile == nil {
		f.Profile = profile.Default()
	}
	return &f, nil
}

// Tick is one simulated determination moment: the glucose/treatment
// history visible at Clock, replayed as if it were collected live.
type Tick struct {
	Clock      time.Time
	Glucose    []models.GlucoseEntry
	Treatments []models.Treatment
}

// Ticks splits a fixture into one Tick per glucose entry (entries sharing a
// timestamp each get their own Tick), each seeing only the history up to and including that
// timestamp, so replaying ticks in order reproduces what a live run would
// have seen at each point.
func (f *Fixture) Ticks() []Tick {
	glucose := append([]models.GlucoseEntry{}, f.Glucose...)
	sort.Slice(glucose, func(i, j int) bool { return glucose[i].Date < glucose[j].Date })

	treatments := append([]models.Treatment{}, f.Treatments...)
	sort.Slice(treatments, func(i, j int) bool { return treatments[i].Date < treatments[j].Date })

	ticks := make([]Tick, 0, len(glucose))
	for i, g := range glucose {
		clock := g.Time()
		var visibleTreatments []models.Treatment
		for _, t := range treatments {
			if !t.Time().After(clock) {
				visibleTreatments = append(visibleTreatments, t)
			}
		}
		ticks = append(ticks, Tick{
			Clock:      clock,
			Glucose:    glucose[:i+1],
			Treatments: visibleTreatments,
		})
	}
	return ticks
}
