package v1

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

func TestCreateContextIsIdempotentByName(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/contexts", `{"name":"billing","description":"ledger migration"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.WorkContext](t, rec)
	assert.NotEmpty(t, created.ContextID)
	assert.Equal(t, "billing", created.Name)
	assert.Equal(t, "ledger migration", created.Description)

	rec = doJSON(t, e, http.MethodPost, "/v1/contexts", `{"name":"billing"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, created.ContextID, decode[domain.WorkContext](t, rec).ContextID)

	rec = doJSON(t, e, http.MethodGet, "/v1/contexts/"+created.ContextID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "billing", decode[domain.WorkContext](t, rec).Name)

	rec = doJSON(t, e, http.MethodGet, "/v1/contexts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Contexts []domain.WorkContext `json:"contexts"`
	}](t, rec)
	require.Len(t, list.Contexts, 1)
}

func TestCreateContextRequiresName(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/contexts", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/v1/contexts/ctx_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSessionUnderContext(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/sessions", `{"context_id":"ctx_missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = doJSON(t, e, http.MethodPost, "/v1/contexts", `{"name":"thesis"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	wc := decode[domain.WorkContext](t, rec)

	rec = doJSON(t, e, http.MethodPost, "/v1/sessions", `{"context_id":"`+wc.ContextID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, wc.ContextID, decode[domain.Session](t, rec).ContextID)
}
