package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thepingdoctor/scrape-api-docs/internal/crawler"
	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/hashutil"
)

func okRecord(u, title, md string, seq int64) crawler.PageRecord {
	return crawler.PageRecord{
		URL:             u,
		Title:           title,
		ContentMarkdown: md,
		ContentHash:     hashutil.ContentHash([]byte(md)),
		Status:          crawler.StatusOK,
		FetchedAt:       time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
		Seq:             seq,
	}
}

func newExporter(t *testing.T) (*MarkdownExporter, *metadata.Recorder) {
	t.Helper()
	recorder := metadata.NewRecorder("test")
	e := NewMarkdownExporter(&recorder)
	return &e, &recorder
}

func TestWrite_LaysDownCorpus(t *testing.T) {
	dir := t.TempDir()
	e, _ := newExporter(t)

	records := []crawler.PageRecord{
		okRecord("https://docs.example.com/guide", "Guide", "# Guide\n\nIntro prose.", 1),
		okRecord("https://docs.example.com/guide/install", "Install", "# Install\n\nSteps.", 2),
	}

	result, err := e.Write(dir, records)
	require.Nil(t, err)
	require.Len(t, result.WriteResults, 2)

	content, readErr := os.ReadFile(result.WriteResults[0].WritePath())
	require.NoError(t, readErr)
	text := string(content)
	assert.Contains(t, text, `source_url: "https://docs.example.com/guide"`)
	assert.Contains(t, text, "# Guide")

	index, readErr := os.ReadFile(result.IndexPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(index), "Guide")
	assert.Contains(t, string(index), "Install")
}

func TestWrite_SortsBySeq(t *testing.T) {
	dir := t.TempDir()
	e, _ := newExporter(t)

	// Completion order reversed relative to enqueue order.
	records := []crawler.PageRecord{
		okRecord("https://docs.example.com/late", "Late", "# Late\n\ntext", 5),
		okRecord("https://docs.example.com/early", "Early", "# Early\n\ntext", 1),
	}

	result, err := e.Write(dir, records)
	require.Nil(t, err)
	require.Len(t, result.WriteResults, 2)
	assert.Equal(t, "https://docs.example.com/early", result.WriteResults[0].PageURL())
	assert.Equal(t, "https://docs.example.com/late", result.WriteResults[1].PageURL())
}

func TestWrite_SkipsNonOKRecords(t *testing.T) {
	dir := t.TempDir()
	e, _ := newExporter(t)

	records := []crawler.PageRecord{
		okRecord("https://docs.example.com/ok", "OK", "# OK\n\ntext", 1),
		{
			URL:       "https://docs.example.com/private",
			Status:    crawler.StatusSkippedRobots,
			ErrorKind: "robots_denied",
			Seq:       2,
		},
		{
			URL:         "https://docs.example.com/broken",
			Status:      crawler.StatusFailed,
			ErrorKind:   "http_5xx",
			ErrorDetail: "server error",
			Seq:         3,
		},
	}

	result, err := e.Write(dir, records)
	require.Nil(t, err)
	assert.Len(t, result.WriteResults, 1)
	assert.Equal(t, 2, result.SkippedPages)

	// Skipped and failed pages still appear in the index with their
	// disposition.
	index, readErr := os.ReadFile(result.IndexPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(index), "skipped_robots")
	assert.Contains(t, string(index), "http_5xx")
}

func TestWrite_CollidingNamesDisambiguated(t *testing.T) {
	dir := t.TempDir()
	e, _ := newExporter(t)

	// Different URLs, same sanitized artifact name.
	records := []crawler.PageRecord{
		okRecord("https://docs.example.com/a/setup", "Setup", "# Setup A\n\ntext", 1),
		okRecord("https://docs.example.com/a-setup", "Setup", "# Setup B\n\nother", 2),
	}
	records[0].Title = "setup"
	records[1].Title = "setup"

	result, err := e.Write(dir, records)
	require.Nil(t, err)
	require.Len(t, result.WriteResults, 2)
	assert.NotEqual(t, result.WriteResults[0].WritePath(), result.WriteResults[1].WritePath())
}

func TestWrite_IdempotentRerun(t *testing.T) {
	dir := t.TempDir()
	e, _ := newExporter(t)

	records := []crawler.PageRecord{
		okRecord("https://docs.example.com/guide", "Guide", "# Guide\n\ntext", 1),
	}

	first, err := e.Write(dir, records)
	require.Nil(t, err)
	second, err := e.Write(dir, records)
	require.Nil(t, err)

	assert.Equal(t, first.WriteResults[0].WritePath(), second.WriteResults[0].WritePath())
}

func TestWrite_RejectsEmptyMarkdownStructure(t *testing.T) {
	dir := t.TempDir()
	e, _ := newExporter(t)

	records := []crawler.PageRecord{
		{
			URL:             "https://docs.example.com/blank",
			Title:           "Blank",
			ContentMarkdown: "   \n\t\n",
			Status:          crawler.StatusOK,
			Seq:             1,
		},
	}

	result, err := e.Write(dir, records)
	require.Nil(t, err)
	assert.Empty(t, result.WriteResults)
	assert.Equal(t, 1, result.SkippedPages)
}

func TestWrite_BadOutputDirFails(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	e, recorder := newExporter(t)
	_, err := e.Write(file, nil)
	require.NotNil(t, err)
	assert.NotEmpty(t, recorder.Errors())
}

func TestArtifactName_Derivation(t *testing.T) {
	used := map[string]struct{}{}

	rec := okRecord("https://docs.example.com/guide/install", "Install", "# I", 1)
	name := artifactName(rec, used)
	assert.Equal(t, "guide-install.md", name)

	root := okRecord("https://docs.example.com/", "Home Page", "# H", 2)
	assert.Equal(t, "Home Page.md", artifactName(root, used))

	assert.False(t, strings.Contains(name, "/"))
}
