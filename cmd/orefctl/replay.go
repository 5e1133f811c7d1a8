package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orefng/orefng/internal/engine"
	"github.com/orefng/orefng/internal/replay"
)

func newReplayCmd() *cobra.Command {
	var fixturePath string
	var twice bool

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a fixture's glucose history tick-by-tick",
		Long: "Replay feeds a fixture's history through Determine one glucose reading at a " +
			"time, as a live run would have seen it. With --verify-identical it runs the " +
			"replay twice and fails if either run's output differs, exercising the " +
			"byte-identical-replay property.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := replay.Load(fixturePath)
			if err != nil {
				return err
			}

			runOnce := func() ([]byte, error) {
				var out []json.RawMessage
				for _, tick := range fixture.Ticks() {
					det, err := engine.Determine(engine.Inputs{
						Glucose:     tick.Glucose,
						Treatments:  tick.Treatments,
						Profile:     fixture.Profile,
						Clock:       tick.Clock,
						CurrentTemp: fixture.CurrentTemp,
					})
					if err != nil {
						return nil, err
					}
					raw, err := json.Marshal(det)
					if err != nil {
						return nil, err
					}
					out = append(out, raw)
				}
				return json.Marshal(out)
			}

			first, err := runOnce()
			if err != nil {
				return err
			}

			if twice {
				second, err := runOnce()
				if err != nil {
					return err
				}
				if string(first) != string(second) {
					return fmt.Errorf("replay is not byte-identical across two runs of the same fixture")
				}
			}

			fmt.Println(string(first))
			return nil
		},
	}

	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a JSON fixture")
	cmd.Flags().BoolVar(&twice, "verify-identical", false, "run the replay twice and fail on any divergence")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}
