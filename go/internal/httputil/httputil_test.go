package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("failed to get clock: %w", docstore.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: name must not be empty", models.ErrValidation), http.StatusBadRequest},
		{"bad path", fmt.Errorf("%w: invalid document id", docstore.ErrInvalidPath), http.StatusBadRequest},
		{"precondition", docstore.ErrPreconditionFailed, http.StatusConflict},
		{"other", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("failed to get room: %w", docstore.ErrNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"failed to get room: document not found"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	var b body
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(req, &b))
	assert.Equal(t, "x", b.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeJSON(req, &b))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	assert.ErrorIs(t, DecodeJSON(req, &b), models.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.ErrorIs(t, DecodeJSON(req, &b), models.ErrValidation)
}

func TestRequestLogger_SetsTimingHeader(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Processing-Time-Micros"))
}
