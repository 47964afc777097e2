package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agristock/agristock/internal/shared"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{fmt.Errorf("inventory: %w", shared.ErrNotFound), http.StatusNotFound, "Not Found"},
		{shared.ErrDuplicate, http.StatusConflict, "Duplicate"},
		{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil), tc.err)
		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var pd ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pd))
		assert.Equal(t, tc.title, pd.Title)
		assert.Equal(t, tc.status, pd.Status)
		assert.Equal(t, "/api/dashboard", pd.Instance)
	}
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]int{"batches": 3})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"batches":3}`, rec.Body.String())
}
