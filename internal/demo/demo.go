// Package demo holds the example programs driven by cmd/cotask. Each
// scenario builds frames with the cotask core and logs what happens.
package demo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/webriots/cotask/internal/config"
)

// Scenario runs one example.
type Scenario func(ctx context.Context, cfg *config.Config, log *slog.Logger) error

var scenarios = map[string]Scenario{
	"fibonacci":    runFibonacci,
	"events":       runEvents,
	"coordination": runCoordination,
	"callback":     runCallback,
	"lock":         runLocked,
	"pool":         runPool,
	"compose":      runCompose,
	"input":        runInput,
}

// Names returns the scenario names in order.
func Names() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run runs the named scenario, or every scenario for "all".
func Run(ctx context.Context, name string, cfg *config.Config, log *slog.Logger) error {
	if name == "all" {
		for _, n := range Names() {
			if err := Run(ctx, n, cfg, log); err != nil {
				return err
			}
		}
		return nil
	}

	s, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("unknown scenario %q", name)
	}
	log = log.With("scenario", name)
	log.Info("scenario starting")
	if err := s(ctx, cfg, log); err != nil {
		return fmt.Errorf("scenario %s: %w", name, err)
	}
	log.Info("scenario done")
	return nil
}
