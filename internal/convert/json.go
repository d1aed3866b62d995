// Package convert maps domain models to the JSON shapes served over HTTP.
package convert

import (
	"fmt"
	"time"

	"github.com/and161185/docportal/internal/model"
)

// DocumentJSON is one row of GET /documents.
type DocumentJSON struct {
	DocID          int64   `json:"doc_id"`
	DocTitle       string  `json:"doc_title"`
	DocFileName    *string `json:"doc_file_name"`
	DepartmentName *string `json:"department_name"`
	CreatedDate    *string `json:"created_date"`
}

// FormatDate renders a date as zero-padded day/month/year. Nil stays nil.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmt.Sprintf("%02d/%02d/%04d", t.Day(), int(t.Month()), t.Year())
	return &s
}

// ToDocumentJSON converts one summary.
func ToDocumentJSON(d model.DocumentSummary) DocumentJSON {
	return DocumentJSON{
		DocID:          d.ID,
		DocTitle:       d.Title,
		DocFileName:    d.FileName,
		DepartmentName: d.Department,
		CreatedDate:    FormatDate(d.CreatedDate),
	}
}

// ToDocumentsJSON converts a listing, preserving order. Never returns nil so
// an empty listing encodes as [].
func ToDocumentsJSON(ds []model.DocumentSummary) []DocumentJSON {
	out := make([]DocumentJSON, 0, len(ds))
	for _, d := range ds {
		out = append(out, ToDocumentJSON(d))
	}
	return out
}
