package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/and161185/docportal/internal/model"
	"github.com/stretchr/testify/require"
)

func TestFormatDate(t *testing.T) {
	t.Parallel()

	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	got := FormatDate(&d)
	require.NotNil(t, got)
	require.Equal(t, "05/03/2024", *got)

	d = time.Date(1999, 12, 31, 23, 0, 0, 0, time.UTC)
	require.Equal(t, "31/12/1999", *FormatDate(&d))

	require.Nil(t, FormatDate(nil))
}

func TestToDocumentsJSON(t *testing.T) {
	t.Parallel()

	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	name := "q1.pdf"
	in := []model.DocumentSummary{
		{ID: 2, Title: "B"},
		{ID: 1, Title: "A", FileName: &name, CreatedDate: &d},
	}
	out := ToDocumentsJSON(in)
	require.Len(t, out, 2)
	require.Equal(t, int64(2), out[0].DocID, "order preserved")

	b, err := json.Marshal(out)
	require.NoError(t, err)
	require.JSONEq(t, `[
	  {"doc_id":2,"doc_title":"B","doc_file_name":null,"department_name":null,"created_date":null},
	  {"doc_id":1,"doc_title":"A","doc_file_name":"q1.pdf","department_name":null,"created_date":"05/03/2024"}
	]`, string(b))

	b, err = json.Marshal(ToDocumentsJSON(nil))
	require.NoError(t, err)
	require.Equal(t, "[]", string(b))
}
