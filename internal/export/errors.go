package export

import (
	"fmt"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type ExportErrorCause string

const (
	ErrCauseWriteFailure     ExportErrorCause = "write failure"
	ErrCausePathError        ExportErrorCause = "path error"
	ErrCauseMalformedContent ExportErrorCause = "malformed content"
)

type ExportError struct {
	Message   string
	Retryable bool
	Cause     ExportErrorCause
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error: %s", e.Cause)
}

func (e *ExportError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapExportErrorToMetadataCause maps exporter-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapExportErrorToMetadataCause(err *ExportError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWriteFailure, ErrCausePathError:
		return metadata.CauseStorageFailure
	case ErrCauseMalformedContent:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
