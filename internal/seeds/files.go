package seeds

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Seed file names, in import order.
const (
	FileUsers        = "users.json"
	FileLicenses     = "licenses.json"
	FilePatients     = "patients.json"
	FileEncounters   = "encounters.json"
	FileAppointments = "appointments.json"
	FileStudies      = "studies.json"
	FileResults      = "study_results.json"
	FileReport       = "report.json"
)

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// nonNil keeps empty collections as [] rather than null in the files.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// WriteSeedSet writes one file per entity plus the report into dir.
func WriteSeedSet(dir string, set *SeedSet, rep *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := map[string]interface{}{
		FileUsers:        nonNil(set.Users),
		FileLicenses:     nonNil(set.Licenses),
		FilePatients:     nonNil(set.Patients),
		FileEncounters:   nonNil(set.Encounters),
		FileAppointments: nonNil(set.Appointments),
		FileStudies:      nonNil(set.Studies),
		FileResults:      nonNil(set.Results),
		FileReport:       rep,
	}
	for name, v := range files {
		if err := writeJSON(filepath.Join(dir, name), v); err != nil {
			return err
		}
	}
	return nil
}

func readJSON[T any](dir, name string, dst *[]T) func() error {
	return func() error {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, dst); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		return nil
	}
}

// ReadSeedSet loads the seed files written by WriteSeedSet concurrently.
func ReadSeedSet(ctx context.Context, dir string) (*SeedSet, error) {
	set := &SeedSet{}
	g, _ := errgroup.WithContext(ctx)
	g.Go(readJSON(dir, FileUsers, &set.Users))
	g.Go(readJSON(dir, FileLicenses, &set.Licenses))
	g.Go(readJSON(dir, FilePatients, &set.Patients))
	g.Go(readJSON(dir, FileEncounters, &set.Encounters))
	g.Go(readJSON(dir, FileAppointments, &set.Appointments))
	g.Go(readJSON(dir, FileStudies, &set.Studies))
	g.Go(readJSON(dir, FileResults, &set.Results))
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	return set, nil
}
