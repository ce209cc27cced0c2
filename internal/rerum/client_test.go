package rerum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithHTTP(srv.URL, srv.URL+"/id", srv.Client(), zap.NewNop())
}

func TestCreateReturnsServerCopy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/create", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var doc map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		doc["@id"] = "https://store.example/id/abc123"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(doc)
	})

	result, err := client.Create(context.Background(), map[string]any{"type": "Annotation"})
	require.NoError(t, err)
	assert.Equal(t, "https://store.example/id/abc123", result["@id"])
	assert.Equal(t, "Annotation", result["type"])
}

func TestOverwriteConflictCarriesServerCopy(t *testing.T) {
	serverCopy := map[string]any{"@id": "https://store.example/id/abc123", "body": "theirs"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/overwrite", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(serverCopy)
	})

	_, err := client.Overwrite(context.Background(), map[string]any{"@id": "https://store.example/id/abc123", "body": "mine"})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindVersionConflict))
	assert.Equal(t, "theirs", apperror.ServerCopyOf(err)["body"])
}

func TestFetchDistinguishesMissingFromBroken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			json.NewEncoder(w).Encode(map[string]any{"@id": r.URL.Path})
		}
	})

	_, err := client.Fetch(context.Background(), client.baseURL+"/gone")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = client.Fetch(context.Background(), client.baseURL+"/broken")
	assert.True(t, apperror.IsKind(err, apperror.KindExternalStore))

	doc, err := client.Fetch(context.Background(), client.baseURL+"/fine")
	require.NoError(t, err)
	assert.Equal(t, "/fine", doc["@id"])
}

func TestDeleteSecondAttemptIsConflict(t *testing.T) {
	deleted := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if deleted {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})

	uri := "https://store.example/id/abc123"
	require.NoError(t, client.Delete(context.Background(), uri))
	err := client.Delete(context.Background(), uri)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
}

func TestQueryDecodesList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		var filter map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&filter))
		assert.Equal(t, "AnnotationPage", filter["type"])
		json.NewEncoder(w).Encode([]map[string]any{
			{"@id": "https://store.example/id/p1"},
			{"@id": "https://store.example/id/p2"},
		})
	})

	docs, err := client.Query(context.Background(), map[string]any{"type": "AnnotationPage"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestNetworkFailureIsExternalStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClientWithHTTP(srv.URL, srv.URL+"/id", srv.Client(), zap.NewNop())
	srv.Close()

	_, err := client.Fetch(context.Background(), srv.URL+"/anything")
	assert.True(t, apperror.IsKind(err, apperror.KindExternalStore))
}
