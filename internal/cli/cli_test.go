package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/disaster-ready/internal/config"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/storage"
)

const catalogYAML = `
quizzes:
  - title: Earthquake basics
    disasterType: earthquake
    questions:
      - text: What do you do when the shaking starts?
        points: 10
        choices:
          - text: Drop, cover and hold on
            correct: true
          - text: Run outside
      - text: Where is the safest spot indoors?
        points: 20
        choices:
          - text: Under a sturdy table
            correct: true
          - text: Next to a window
  - title: Flood readiness
    disasterType: flood
    questions:
      - text: How much moving water can knock you down?
        points: 5
        choices:
          - text: Six inches
            correct: true
          - text: Three feet
`

func TestParseCatalog(t *testing.T) {
	quizzes, err := parseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	require.Len(t, quizzes, 2)

	eq := quizzes[0]
	assert.Equal(t, "Earthquake basics", eq.Title)
	assert.Equal(t, "earthquake", eq.DisasterType)
	require.Len(t, eq.Questions, 2)
	assert.Equal(t, 20, eq.Questions[1].Points)
	assert.True(t, eq.Questions[0].Choices[0].IsCorrect)
	assert.False(t, eq.Questions[0].Choices[1].IsCorrect)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "quizzes: [unclosed"},
		{"empty", "quizzes: []"},
		{"two correct choices", `
quizzes:
  - title: Bad
    questions:
      - text: Q
        points: 1
        choices:
          - {text: A, correct: true}
          - {text: B, correct: true}
`},
		{"zero points", `
quizzes:
  - title: Bad
    questions:
      - text: Q
        points: 0
        choices:
          - {text: A, correct: true}
          - {text: B}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

// writeConfig points the CLI at a SQLite file under a temp dir.
func writeConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "data", "cli.db")
	configPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
auth:
  jwtSecret: cli-test-secret-0123456789
log:
  level: error
`, dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedCommand(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	catalogPath := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogYAML), 0o600))

	out, err := run(t, "--config", configPath, "seed", "--file", catalogPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 quizzes")

	stores, err := storage.Open(context.Background(), config.Database{Driver: config.DriverSQLite, Path: dbPath})
	require.NoError(t, err)
	defer stores.Close()

	quizzes, err := stores.Quizzes.ListQuizzes(context.Background())
	require.NoError(t, err)
	require.Len(t, quizzes, 2)

	full, err := stores.Quizzes.GetQuizWithQuestions(context.Background(), quizzes[0].ID)
	require.NoError(t, err)
	require.Len(t, full.Questions, 2)

	correct, err := stores.Quizzes.CorrectChoices(context.Background(), full.QuestionIDs())
	require.NoError(t, err)
	assert.Equal(t, full.Questions[0].Choices[0].ID, correct[full.Questions[0].ID])
}

func TestSeedCommand_RerunSkipsExistingTitles(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	catalogPath := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogYAML), 0o600))

	_, err := run(t, "--config", configPath, "seed", "--file", catalogPath)
	require.NoError(t, err)

	out, err := run(t, "--config", configPath, "seed", "--file", catalogPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 0 quizzes")
	assert.Contains(t, out, "skipped 2 already present")

	stores, err := storage.Open(context.Background(), config.Database{Driver: config.DriverSQLite, Path: dbPath})
	require.NoError(t, err)
	defer stores.Close()

	quizzes, err := stores.Quizzes.ListQuizzes(context.Background())
	require.NoError(t, err)
	assert.Len(t, quizzes, 2)
}

func TestSeedCommand_RequiresFile(t *testing.T) {
	configPath, _ := writeConfig(t)
	_, err := run(t, "--config", configPath, "seed")
	assert.Error(t, err)
}

func TestAdminCommands(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(dbPath), 0o755))

	stores, err := storage.Open(context.Background(), config.Database{Driver: config.DriverSQLite, Path: dbPath})
	require.NoError(t, err)
	user := &model.User{Name: "Root", Email: "root@example.com", PasswordHash: "h"}
	require.NoError(t, stores.Users.Create(context.Background(), user))
	require.NoError(t, stores.Close())

	isAdmin := func() bool {
		stores, err := storage.Open(context.Background(), config.Database{Driver: config.DriverSQLite, Path: dbPath})
		require.NoError(t, err)
		defer stores.Close()
		got, err := stores.Users.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		return got.IsAdmin
	}

	out, err := run(t, "--config", configPath, "admin", "grant", "--email", "ROOT@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "isAdmin=true")
	assert.True(t, isAdmin())

	_, err = run(t, "--config", configPath, "admin", "revoke", "--email", "root@example.com")
	require.NoError(t, err)
	assert.False(t, isAdmin())

	_, err = run(t, "--config", configPath, "admin", "grant", "--email", "ghost@example.com")
	assert.ErrorContains(t, err, "no user")
}
