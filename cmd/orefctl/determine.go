package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/orefng/orefng/internal/engine"
	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profileio"
	"github.com/orefng/orefng/internal/replay"
)

func newDetermineCmd() *cobra.Command {
	var fixturePath, profilePath string

	cmd := &cobra.Command{
		Use:   "determine",
		Short: "Run a single determination against a fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := replay.Load(fixturePath)
			if err != nil {
				return err
			}
			if profilePath != "" {
				p, err := profileio.Load(profilePath)
				if err != nil {
					return err
				}
				fixture.Profile = p
			}

			clock := time.Now()
			if len(fixture.Glucose) > 0 {
				latest := fixture.Glucose[0]
				for _, g := range fixture.Glucose {
					if g.Date > latest.Date {
						latest = g
					}
				}
				clock = latest.Time()
			}

			det, err := engine.Determine(engine.Inputs{
				Glucose:     fixture.Glucose,
				Treatments:  fixture.Treatments,
				Profile:     fixture.Profile,
				Clock:       clock,
				CurrentTemp: fixture.CurrentTemp,
			})
			if err != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(models.ErrorJSON{Error: err.Error()})
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(det)
		},
	}

	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a JSON fixture with glucose/treatments/profile")
	cmd.Flags().StringVar(&profilePath, "profile", "", "optional YAML profile overriding the fixture's embedded profile")
	if err := cmd.MarkFlagRequired("fixture"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return cmd
}
