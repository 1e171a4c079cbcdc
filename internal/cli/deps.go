package cli

import (
	"fmt"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/catalogue"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/config"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/settings"
)

// randomSource returns a seeded source when outcomes.seed is set.
func randomSource(cfg *config.OutcomesConfig) outcome.RandomSource {
	if cfg.Seed != 0 {
		return outcome.NewSeededRNG(cfg.Seed)
	}
	return outcome.DefaultRNG()
}

// buildEngine loads the catalogue and the outcome table.
func buildEngine(cfg *config.Config) (*outcome.Engine, *catalogue.Catalogue, error) {
	if cfg.Catalogue.Path == "" {
		return nil, nil, fmt.Errorf("catalogue.path is not set")
	}
	cat, err := catalogue.Load(cfg.Catalogue.Path)
	if err != nil {
		return nil, nil, err
	}
	table, err := outcome.LoadTable(cfg.Outcomes.TablePath)
	if err != nil {
		return nil, nil, err
	}
	engine, err := outcome.NewEngine(table, nil, cat, randomSource(&cfg.Outcomes))
	if err != nil {
		return nil, nil, err
	}
	return engine, cat, nil
}

func settingsStore(cfg *config.Config) settings.Store {
	return settings.NewFileStore(cfg.Settings.Path)
}
