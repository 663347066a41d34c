package export

/*
Responsibilities
- Persist the crawl's page records as a Markdown corpus
- Re-sort records into BFS enqueue order for a stable layout
- Ensure deterministic, collision-free filenames
- Write an index document tying the corpus together

Output Characteristics
- Stable directory layout
- Idempotent writes
- Overwrite-safe reruns

The exporter is the only component that touches the filesystem; records
are treated as immutable input.
*/

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/thepingdoctor/scrape-api-docs/internal/crawler"
	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/fileutil"
	"github.com/thepingdoctor/scrape-api-docs/pkg/hashutil"
)

// Sink persists page records. Implementations decide layout and format.
type Sink interface {
	Write(outputDir string, records []crawler.PageRecord) (ExportResult, failure.ClassifiedError)
}

type MarkdownExporter struct {
	metadataSink metadata.MetadataSink
}

func NewMarkdownExporter(metadataSink metadata.MetadataSink) MarkdownExporter {
	return MarkdownExporter{
		metadataSink: metadataSink,
	}
}

// Write lays the corpus down as one Markdown file per ok record plus an
// index.md. Records that carry no content (skips, failures) appear only
// in the index.
func (m *MarkdownExporter) Write(outputDir string, records []crawler.PageRecord) (ExportResult, failure.ClassifiedError) {
	result, err := write(outputDir, records)
	if err != nil {
		var exportError *ExportError
		errors.As(err, &exportError)
		m.metadataSink.RecordError(
			time.Now(),
			"export",
			"MarkdownExporter.Write",
			mapExportErrorToMetadataCause(exportError),
			err.Error(),
			[]metadata.Attribute{},
		)
		return ExportResult{}, exportError
	}
	return result, nil
}

func write(outputDir string, records []crawler.PageRecord) (ExportResult, error) {
	if err := fileutil.EnsureDir(outputDir); err != nil {
		return ExportResult{}, &ExportError{
			Message: err.Error(),
			Cause:   ErrCausePathError,
		}
	}

	// Completion order is an accident of scheduling; the corpus is laid
	// out in BFS enqueue order.
	sorted := make([]crawler.PageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Seq < sorted[j].Seq
	})

	var result ExportResult
	usedNames := make(map[string]struct{})

	for _, rec := range sorted {
		if rec.Status != crawler.StatusOK || rec.ContentMarkdown == "" {
			result.SkippedPages++
			continue
		}
		if !structurallySound(rec.ContentMarkdown) {
			result.SkippedPages++
			continue
		}

		name := artifactName(rec, usedNames)
		usedNames[name] = struct{}{}
		writePath := filepath.Join(outputDir, name)

		content := documentFor(rec)
		if err := os.WriteFile(writePath, []byte(content), 0644); err != nil {
			return ExportResult{}, &ExportError{
				Message: err.Error(),
				Cause:   ErrCauseWriteFailure,
			}
		}
		result.WriteResults = append(result.WriteResults, NewWriteResult(
			rec.URL,
			writePath,
			len(content),
			rec.ContentHash,
		))
	}

	indexPath := filepath.Join(outputDir, "index.md")
	if err := os.WriteFile(indexPath, []byte(indexFor(sorted, result.WriteResults)), 0644); err != nil {
		return ExportResult{}, &ExportError{
			Message: err.Error(),
			Cause:   ErrCauseWriteFailure,
		}
	}
	result.IndexPath = indexPath

	return result, nil
}

// structurallySound parses the Markdown and rejects documents whose AST
// is empty or holds nothing but thematic breaks; any other top-level
// node makes the document sound.
func structurallySound(md string) bool {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))
	children := doc.GetChildren()
	if len(children) == 0 {
		return false
	}
	for _, child := range children {
		if _, isLeaf := child.(*ast.HorizontalRule); !isLeaf {
			return true
		}
	}
	return false
}

// artifactName derives a deterministic filename from the record's URL
// path, falling back to the title, disambiguating collisions with a
// short content-hash suffix.
func artifactName(rec crawler.PageRecord, used map[string]struct{}) string {
	base := strings.Trim(pathOf(rec.URL), "/")
	if base == "" {
		base = rec.Title
	}
	if base == "" {
		base = "page"
	}
	base = strings.ReplaceAll(base, "/", "-")
	name := fileutil.SanitizeFilename(base)
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	if _, collision := used[name]; collision {
		suffix := shortHash(rec)
		name = strings.TrimSuffix(name, ".md") + "-" + suffix + ".md"
	}
	return name
}

func shortHash(rec crawler.PageRecord) string {
	h := rec.ContentHash
	if h == "" {
		h = hashutil.ContentHash([]byte(rec.URL))
	}
	if len(h) > 8 {
		h = h[:8]
	}
	return h
}

func pathOf(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			return rest[j:]
		}
		return ""
	}
	return rawURL
}

// documentFor renders one record with a small frontmatter block so the
// corpus keeps provenance next to content.
func documentFor(rec crawler.PageRecord) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", rec.Title)
	fmt.Fprintf(&b, "source_url: %q\n", rec.URL)
	fmt.Fprintf(&b, "depth: %d\n", rec.Depth)
	fmt.Fprintf(&b, "fetched_at: %q\n", rec.FetchedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "rendered_with_browser: %t\n", rec.RenderedWithBrowser)
	if rec.ContentHash != "" {
		fmt.Fprintf(&b, "content_hash: %q\n", rec.ContentHash)
	}
	b.WriteString("---\n\n")
	b.WriteString(rec.ContentMarkdown)
	b.WriteString("\n")
	return b.String()
}

// indexFor lists every record, written or not, with its disposition.
func indexFor(records []crawler.PageRecord, written []WriteResult) string {
	pathByURL := make(map[string]string, len(written))
	for _, w := range written {
		pathByURL[w.PageURL()] = filepath.Base(w.WritePath())
	}

	var b strings.Builder
	b.WriteString("# Crawl index\n\n")
	for _, rec := range records {
		switch {
		case rec.Status == crawler.StatusOK:
			if name, ok := pathByURL[rec.URL]; ok {
				fmt.Fprintf(&b, "- [%s](%s) — %s\n", rec.Title, name, rec.URL)
			} else {
				fmt.Fprintf(&b, "- %s — %s (empty)\n", rec.Title, rec.URL)
			}
		default:
			fmt.Fprintf(&b, "- %s (%s", rec.URL, rec.Status)
			if rec.ErrorKind != "" {
				fmt.Fprintf(&b, ": %s", rec.ErrorKind)
			}
			b.WriteString(")\n")
		}
	}
	return b.String()
}
