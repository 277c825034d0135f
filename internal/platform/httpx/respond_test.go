package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONSetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]string{"status": "ok"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestProblemUsesProblemMediaType(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusGone, "Table Expired", "upload the file again")
	require.Equal(t, http.StatusGone, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var detail ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, "Table Expired", detail.Title)
	require.Equal(t, http.StatusGone, detail.Status)
}
