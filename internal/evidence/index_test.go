package evidence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdraft/internal/section"
)

func seedRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"README.md":          "# Demo\n\nScoring pipeline for credit risk.\n",
		"models/train.py":    "def train():\n    return 'auc'\n",
		"models/score.go":    "package models\n\nfunc Score(x float64) float64 { return x }\n",
		"config.yaml":        "threshold: 0.8\n",
		"image.bin":          "ignored by extension",
		".git/HEAD":          "ref: refs/heads/main\n",
		"vendor/dep/dep.go":  "package dep\n",
		"notes/decision.txt": "Monitoring cadence is monthly.\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestBuildAppliesAllowAndDenyLists(t *testing.T) {
	idx, err := Build(seedRepo(t), nil, nil)
	require.NoError(t, err)

	files := idx.Files()
	assert.Contains(t, files, "README.md")
	assert.Contains(t, files, "models/train.py")
	assert.Contains(t, files, "models/score.go")
	assert.Contains(t, files, "notes/decision.txt")
	assert.NotContains(t, files, "image.bin")
	assert.NotContains(t, files, ".git/HEAD")
	assert.NotContains(t, files, "vendor/dep/dep.go")
}

func TestBuildSkipsBinaryContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.txt"), []byte("text\x00binary"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.txt"), []byte("plain text"), 0o644))

	idx, err := Build(root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.txt"}, idx.Files())
}

func TestSearch(t *testing.T) {
	idx, err := Build(seedRepo(t), nil, nil)
	require.NoError(t, err)

	matches := idx.Search("SCORING", 0)
	assert.Equal(t, []string{"README.md"}, matches)

	assert.Empty(t, idx.Search("absent phrase", 0))
}

func TestSearchHonorsLimit(t *testing.T) {
	idx, err := Build(seedRepo(t), nil, nil)
	require.NoError(t, err)

	// Every indexed file contains at least one vowel.
	all := idx.Search("e", 0)
	assert.Greater(t, len(all), 2)
	assert.Len(t, idx.Search("e", 2), 2)
}

func TestEvidenceForMatchesTitleTerms(t *testing.T) {
	idx, err := Build(seedRepo(t), nil, nil)
	require.NoError(t, err)

	out := idx.EvidenceFor(section.Section{ID: "monitoring", Title: "Monitoring Cadence"}, 4)
	require.NotEmpty(t, out)
	assert.Contains(t, out[0], "notes/decision.txt")
}

func TestEvidenceForFallsBackToFirstFiles(t *testing.T) {
	idx, err := Build(seedRepo(t), nil, nil)
	require.NoError(t, err)

	out := idx.EvidenceFor(section.Section{ID: "x", Title: "Zzzz Qqqq"}, 2)
	assert.Len(t, out, 2)
}

func TestEvidenceForOutlinesGoFiles(t *testing.T) {
	idx, err := Build(seedRepo(t), nil, nil)
	require.NoError(t, err)

	out := idx.EvidenceFor(section.Section{ID: "scoring", Title: "Score Function"}, 4)
	require.NotEmpty(t, out)

	var goEvidence string
	for _, entry := range out {
		if strings.HasPrefix(entry, "models/score.go") {
			goEvidence = entry
		}
	}
	require.NotEmpty(t, goEvidence)
	assert.Contains(t, goEvidence, "function Score")
}

func TestOutline(t *testing.T) {
	source := []byte(`package demo

type Scorer struct{}

func (s *Scorer) Score(x float64) float64 {
	return x
}

func Train() error {
	return nil
}
`)
	lines := Outline(source)
	require.Len(t, lines, 3)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "type Scorer (lines 3-3)")
	assert.Contains(t, joined, "method Score (lines 5-7)")
	assert.Contains(t, joined, "function Train (lines 9-11)")
}
