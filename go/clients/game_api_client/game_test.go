package game_api_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcdev12/roulette-tablet/go/clients"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*GameApiClient, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath()}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		requests = append(requests, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewGameApiClient(srv.URL+"/api", time.Second), &requests
}

func TestFetchState(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.DebugSnapshot())
	})

	state, err := client.FetchState(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, models.DebugSessionID, state.ID)
	assert.Len(t, state.Players, 4)

	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodGet, (*requests)[0].Method)
	assert.Equal(t, "/api/game/abc/state", (*requests)[0].Path)
}

func TestFetchStateEscapesGameID(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"a/b"}`))
	})

	_, err := client.FetchState(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/api/game/a%2Fb/state", (*requests)[0].Path)
}

func TestFetchStateNotFound(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Game not found"}`))
	})

	_, err := client.FetchState(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, clients.ErrNotFound)

	var apiErr *clients.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Game not found", apiErr.Detail)
}

func TestFetchStateConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewGameApiClient(url+"/api", time.Second)
	_, err := client.FetchState(context.Background(), "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, clients.ErrConnection)
}

func TestFetchStateServerError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchState(context.Background(), "abc")
	assert.ErrorIs(t, err, clients.ErrConnection)
}

func TestSubmitActionShoot(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"message":"BANG"}`))
	})

	ack, err := client.SubmitAction(context.Background(), "g1", models.ActionRequest{
		Action:   models.ActionShoot,
		TargetID: models.IntPtr(2),
	})
	require.NoError(t, err)
	require.NotNil(t, ack.Success)
	assert.True(t, *ack.Success)
	assert.Equal(t, "BANG", ack.Message)

	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/game/g1/action", req.Path)
	assert.Equal(t, "shoot", req.Body["action"])
	assert.Equal(t, float64(2), req.Body["target_id"])
	assert.NotContains(t, req.Body, "item_name")
}

func TestSubmitActionUseItemWithoutTarget(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.SubmitAction(context.Background(), "g1", models.ActionRequest{
		Action:   models.ActionUseItem,
		ItemName: "beer",
	})
	require.NoError(t, err)

	body := (*requests)[0].Body
	assert.Equal(t, "use_item", body["action"])
	assert.Equal(t, "beer", body["item_name"])
	assert.NotContains(t, body, "target_id")
}

func TestSubmitActionRejected(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Not your turn"}`))
	})

	_, err := client.SubmitAction(context.Background(), "g1", models.ActionRequest{
		Action:   models.ActionShoot,
		TargetID: models.IntPtr(1),
	})
	assert.ErrorIs(t, err, clients.ErrInvalidAction)
	assert.Contains(t, err.Error(), "Not your turn")
}

func TestSubmitActionShapeChecks(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.SubmitAction(context.Background(), "g1", models.ActionRequest{Action: models.ActionShoot})
	assert.ErrorIs(t, err, clients.ErrInvalidAction)

	_, err = client.SubmitAction(context.Background(), "g1", models.ActionRequest{Action: models.ActionUseItem})
	assert.ErrorIs(t, err, clients.ErrInvalidAction)

	_, err = client.SubmitAction(context.Background(), "g1", models.ActionRequest{Action: "dance"})
	assert.ErrorIs(t, err, clients.ErrInvalidAction)

	assert.Empty(t, *requests)
}

func TestStartInteraction(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	})

	_, err := client.StartInteraction(context.Background(), "g1", "handcuffs")
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, "/api/game/g1/interaction/start", req.Path)
	assert.Equal(t, "handcuffs", req.Body["item_name"])
}

func TestStartInteractionAlreadyPending(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":[{"msg":"interaction already pending"}]}`))
	})

	_, err := client.StartInteraction(context.Background(), "g1", "handcuffs")
	assert.ErrorIs(t, err, clients.ErrInvalidAction)
	assert.Contains(t, err.Error(), "interaction already pending")
}

func TestCancelInteraction(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.CancelInteraction(context.Background(), "g1")
	require.NoError(t, err)
	_, err = client.CancelInteraction(context.Background(), "g1")
	require.NoError(t, err)

	require.Len(t, *requests, 2)
	assert.Equal(t, "/api/game/g1/interaction/cancel", (*requests)[0].Path)
	assert.Empty(t, (*requests)[0].Body)
}
