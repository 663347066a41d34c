package export

// WriteResult describes one artifact written to the corpus directory.
type WriteResult struct {
	pageURL     string
	writePath   string
	byteCount   int
	contentHash string
}

func NewWriteResult(pageURL, writePath string, byteCount int, contentHash string) WriteResult {
	return WriteResult{
		pageURL:     pageURL,
		writePath:   writePath,
		byteCount:   byteCount,
		contentHash: contentHash,
	}
}

func (w WriteResult) PageURL() string {
	return w.pageURL
}

func (w WriteResult) WritePath() string {
	return w.writePath
}

func (w WriteResult) ByteCount() int {
	return w.byteCount
}

func (w WriteResult) ContentHash() string {
	return w.contentHash
}

// ExportResult summarizes a corpus export.
type ExportResult struct {
	WriteResults []WriteResult
	IndexPath    string
	SkippedPages int
}
