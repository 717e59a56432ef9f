package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/service"
	"github.com/sakif/disaster-ready/internal/storage"
)

// catalogFile is the YAML layout accepted by `seed --file`:
//
//	quizzes:
//	  - title: Earthquake basics
//	    disasterType: earthquake
//	    questions:
//	      - text: What do you do when the shaking starts?
//	        points: 10
//	        choices:
//	          - text: Drop, cover and hold on
//	            correct: true
//	          - text: Run outside
type catalogFile struct {
	Quizzes []model.Quiz `yaml:"quizzes"`
}

// NewSeedCmd builds the subcommand that loads quiz definitions into the
// configured store.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quiz catalog definitions from a YAML file",
		Long: `Load quiz catalog definitions from a YAML file.

Quizzes are matched by title. A quiz whose title is already in the store is
skipped, so running seed again with the same file adds nothing. Seed never
updates or removes an existing quiz.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			quizzes, err := readCatalog(file)
			if err != nil {
				return err
			}

			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			stores, err := storage.OpenCached(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			svc := service.NewQuizService(stores.Quizzes, logger)
			existing, err := svc.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing existing quizzes: %w", err)
			}
			present := make(map[string]bool, len(existing))
			for _, q := range existing {
				present[strings.TrimSpace(q.Title)] = true
			}

			var seeded, skipped int
			for i := range quizzes {
				title := strings.TrimSpace(quizzes[i].Title)
				if present[title] {
					skipped++
					continue
				}
				if err := svc.Create(cmd.Context(), &quizzes[i]); err != nil {
					return fmt.Errorf("seeding quiz %d of %d: %w", i+1, len(quizzes), err)
				}
				present[title] = true
				seeded++
			}

			out := cmd.OutOrStdout()
			if skipped > 0 {
				fmt.Fprintf(out, "seeded %d quizzes from %s, skipped %d already present\n", seeded, file, skipped)
				return nil
			}
			fmt.Fprintf(out, "seeded %d quizzes from %s\n", seeded, file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readCatalog parses and validates every quiz before anything is written, so
// a bad file seeds nothing.
func readCatalog(path string) ([]model.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]model.Quiz, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(file.Quizzes) == 0 {
		return nil, fmt.Errorf("catalog has no quizzes")
	}
	for i := range file.Quizzes {
		if err := service.ValidateQuiz(&file.Quizzes[i]); err != nil {
			return nil, fmt.Errorf("catalog quiz %d: %w", i+1, err)
		}
	}
	return file.Quizzes, nil
}
