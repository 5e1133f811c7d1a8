package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profileio"
	"github.com/orefng/orefng/internal/replay"
	"github.com/orefng/orefng/internal/server"
)

// fixtureSource re-reads a fixture file on every tick, acting as a stand-in
// InputSource for a live collaborator (Nightscout poller, pump driver)
// until one is wired in.
type fixtureSource struct {
	path string
}

func (s fixtureSource) Fetch(ctx context.Context) ([]models.GlucoseEntry, []models.Treatment, models.TempBasal, error) {
	fixture, err := replay.Load(s.path)
	if err != nil {
		return nil, nil, models.TempBasal{}, err
	}
	return fixture.Glucose, fixture.Treatments, fixture.CurrentTemp, nil
}

func newServeCmd() *cobra.Command {
	var fixturePath, profilePath string
	var intervalSeconds int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Tick the decision engine on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profileio.Load(profilePath)
			if err != nil {
				return err
			}

			logger := log.NewLogfmtLogger(os.Stdout)
			logger = log.With(logger, "ts", log.DefaultTimestampUTC)

			srv := server.New(fixtureSource{path: fixturePath}, p, time.Duration(intervalSeconds)*time.Second, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv.Run(ctx)
			return nil
		},
	}

	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a JSON fixture re-read every tick")
	cmd.Flags().StringVar(&profilePath, "profile", "", "path to a YAML therapy profile")
	cmd.Flags().IntVar(&intervalSeconds, "interval", 300, "seconds between ticks")
	_ = cmd.MarkFlagRequired("fixture")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
