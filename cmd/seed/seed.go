package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"repocatalog/internal/core/apperror"
	"repocatalog/internal/domain/catalog"
	"repocatalog/pkg/logger"
)

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Repositories []seedEntry `yaml:"repositories"`
}

type seedEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
}

type seedResult struct {
	Created      int
	Skipped      int
	NotifyFailed int
}

func loadSeedFile(path string) ([]seedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) ([]seedEntry, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return f.Repositories, nil
}

// creator is the part of catalog.Service the seeder needs.
type creator interface {
	Create(ctx context.Context, in catalog.NewRecord) (*catalog.Record, error)
}

// seedRecords creates every entry in order. Duplicates are skipped and a
// failed notification still counts as created; any other error stops the run.
func seedRecords(ctx context.Context, svc creator, entries []seedEntry, log *logger.Logger) (seedResult, error) {
	var res seedResult
	for i, e := range entries {
		rec, err := svc.Create(ctx, catalog.NewRecord{
			Name:        e.Name,
			Description: e.Description,
			URL:         e.URL,
		})
		switch {
		case err == nil:
			res.Created++
			log.Debugw("seeded repository", "id", rec.ID, "name", rec.Name)
		case apperror.IsDuplicate(err):
			res.Skipped++
			log.Infow("repository already exists, skipping", "name", e.Name)
		case apperror.IsDispatch(err):
			res.Created++
			res.NotifyFailed++
			log.Warnw("repository seeded but notification failed", "name", e.Name, "error", err)
		default:
			return res, fmt.Errorf("entry %d (%q): %w", i, e.Name, err)
		}
	}
	return res, nil
}
