package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"foodflow/internal/auth"
	"foodflow/internal/core"
	"foodflow/internal/exports"
	memoryblob "foodflow/internal/infra/blob/memory"
	"foodflow/internal/live"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testAPI struct {
	srv *httptest.Server
	hub *live.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	fixture, err := core.DemoFixture()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusRecorder(reg)
	require.NoError(t, err)
	hub := live.NewHub(nil)
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(),
		core.WithPasswordHasher(auth.BcryptHasher{Cost: bcrypt.MinCost}),
		core.WithDemoSeed(fixture),
		core.WithMetricsRecorder(metrics),
		core.WithChangeSink(hub),
	)
	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	worker := exports.NewWorker(svc, memoryblob.New())
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })

	srv := httptest.NewServer(NewRouter(Options{
		Service:  svc,
		Tokens:   tokens,
		Hub:      hub,
		Exports:  worker,
		Gatherer: reg,
	}))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, hub: hub}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (a *testAPI) signup(t *testing.T, email string) (string, core.UserProfile) {
	t.Helper()
	resp, data := a.do(t, http.MethodPost, "/api/v1/auth/signup", "", core.SignupInput{
		Name: "Amina", FarmName: "Green Acres", Region: "east-africa", Email: email, Password: "harvest-2025",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var out sessionResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotEmpty(t, out.Token)
	return out.Token, out.User
}

func decodeInto(t *testing.T, data []byte, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, dst), string(data))
}

func TestPublicEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := api.do(t, http.MethodGet, "/api/v1/regions", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), "east-africa")

	resp, data = api.do(t, http.MethodPost, "/api/v1/demo/advisory", "", core.SimulationInput{Region: "west-africa", Crop: "Cassava"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.Contains(t, string(data), `"confidence"`)

	resp, _ = api.do(t, http.MethodPost, "/api/v1/demo/advisory", "", core.SimulationInput{Region: "west-africa", Crop: "Tea"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	token, user := api.signup(t, "amina@example.com")
	require.Equal(t, "East Africa", user.Region)

	resp, data := api.do(t, http.MethodPost, "/api/v1/auth/signup", "", core.SignupInput{
		Name: "Other", Email: "amina@example.com", Password: "x",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, string(data), core.ErrEmailTaken.Error())

	resp, _ = api.do(t, http.MethodPost, "/api/v1/auth/login", "", credentials{Email: "amina@example.com", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data = api.do(t, http.MethodPost, "/api/v1/auth/login", "", credentials{Email: "amina@example.com", Password: "harvest-2025"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = api.do(t, http.MethodGet, "/api/v1/session", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session sessionResponse
	decodeInto(t, data, &session)
	require.Equal(t, user.ID, session.User.ID)
	require.Empty(t, session.Token)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/session", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = api.do(t, http.MethodGet, "/api/v1/session", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	farm := "Riverside"
	resp, data = api.do(t, http.MethodPatch, "/api/v1/profile", token, core.ProfileUpdate{FarmName: &farm})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.Contains(t, string(data), "Riverside")
}

func TestSignupRejectsOverlongPassword(t *testing.T) {
	api := newTestAPI(t)
	passphrase := "the long rains came early to the valley and the maize stood tall in every field"
	require.Greater(t, len(passphrase), auth.MaxPasswordBytes)

	resp, data := api.do(t, http.MethodPost, "/api/v1/auth/signup", "", core.SignupInput{
		Name: "Amina", Email: "amina@example.com", Password: passphrase,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
	require.Contains(t, string(data), "at most 72 bytes")

	resp, _ = api.do(t, http.MethodPost, "/api/v1/auth/login", "", credentials{Email: "amina@example.com", Password: passphrase})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestParcelAndCycleLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup(t, "lee@example.com")

	resp, data := api.do(t, http.MethodPost, "/api/v1/parcels", token, core.ParcelInput{
		Name: "Hill Plot", Hectares: 1.5, SoilType: "Silt", IrrigationType: "Drip",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created struct {
		Parcel core.Parcel `json:"parcel"`
	}
	decodeInto(t, data, &created)

	resp, data = api.do(t, http.MethodPost, "/api/v1/parcels", token, core.ParcelInput{
		Name: "Nowhere", Hectares: 0, SoilType: "Silt", IrrigationType: "Drip",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, string(data), "violations")

	resp, _ = api.do(t, http.MethodPost, "/api/v1/parcels", token, core.ParcelInput{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = api.do(t, http.MethodPost, "/api/v1/cycles", token, core.CycleInput{
		ParcelID: created.Parcel.ID, CropType: "Coffee", PlantedAt: "2025-05-01",
		TargetHarvestAt: "2025-11-01", ProjectedYieldKg: 800,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var cycle struct {
		Cycle core.CropCycle `json:"cycle"`
	}
	decodeInto(t, data, &cycle)
	require.Equal(t, "Seeding", string(cycle.Cycle.Stage))

	resp, data = api.do(t, http.MethodPut, "/api/v1/cycles/"+cycle.Cycle.ID+"/stage", token, map[string]string{"stage": "Flowering"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.Contains(t, string(data), "Flowering")

	resp, _ = api.do(t, http.MethodDelete, "/api/v1/parcels/"+created.Parcel.ID, token, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = api.do(t, http.MethodDelete, "/api/v1/cycles/"+cycle.Cycle.ID, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = api.do(t, http.MethodDelete, "/api/v1/parcels/"+created.Parcel.ID, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = api.do(t, http.MethodPatch, "/api/v1/parcels/"+created.Parcel.ID, token, map[string]any{"name": "Gone"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOperationsConsultAndRecords(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup(t, "kofi@example.com")

	resp, data := api.do(t, http.MethodGet, "/api/v1/operations", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ops struct {
		Operations []struct {
			Cycle          core.CropCycle `json:"cycle"`
			LatestAdvisory *core.Advisory `json:"latest_advisory"`
		} `json:"operations"`
	}
	decodeInto(t, data, &ops)
	require.Len(t, ops.Operations, 2)

	var cycleID string
	for _, op := range ops.Operations {
		if op.Cycle.CropType == "Rice" {
			cycleID = op.Cycle.ID
		}
	}
	require.NotEmpty(t, cycleID)
	resp, data = api.do(t, http.MethodPost, "/api/v1/operations/"+cycleID+"/consult", token, core.ConsultInput{ObservedRainfall: "Heavy"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var consulted struct {
		Advisory core.Advisory `json:"advisory"`
	}
	decodeInto(t, data, &consulted)
	require.Equal(t, cycleID, consulted.Advisory.CycleID)
	require.False(t, consulted.Advisory.IsCompleted)

	resp, _ = api.do(t, http.MethodPost, "/api/v1/operations/missing/consult", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = api.do(t, http.MethodPost, "/api/v1/advisories/"+consulted.Advisory.ID+"/complete", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = api.do(t, http.MethodGet, "/api/v1/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `"plots_managed":3`)

	resp, data = api.do(t, http.MethodGet, "/api/v1/records?format=csv", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	require.True(t, strings.HasPrefix(string(data), "completed_at,parcel,crop"))
	require.Contains(t, string(data), "Riverbank Plot")

	resp, data = api.do(t, http.MethodPost, "/api/v1/operations/sync", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), "foodflow_service_operations_total")
}

func TestExportsAreScopedToOwner(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup(t, "ana@example.com")
	otherToken, _ := api.signup(t, "ben@example.com")

	resp, data := api.do(t, http.MethodPost, "/api/v1/exports", token, map[string]any{"formats": []string{"json"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))
	var queued struct {
		Export exports.Record `json:"export"`
	}
	decodeInto(t, data, &queued)

	resp, _ = api.do(t, http.MethodPost, "/api/v1/exports", token, map[string]any{"formats": []string{"pdf"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	path := "/api/v1/exports/" + queued.Export.ID
	require.Eventually(t, func() bool {
		_, data := api.do(t, http.MethodGet, path, token, nil)
		var got struct {
			Export exports.Record `json:"export"`
		}
		return json.Unmarshal(data, &got) == nil && got.Export.Status == exports.StatusSucceeded
	}, 5*time.Second, 20*time.Millisecond)

	resp, data = api.do(t, http.MethodGet, path+"/artifacts/json", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), "North Field A-1")

	resp, _ = api.do(t, http.MethodGet, path, otherToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsStreamCommittedChanges(t *testing.T) {
	api := newTestAPI(t)
	token, user := api.signup(t, "sam@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/api/v1/events?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return api.hub.Subscribers(user.ID) == 1 }, 5*time.Second, 10*time.Millisecond)

	resp, data := api.do(t, http.MethodPost, "/api/v1/parcels", token, core.ParcelInput{
		Name: "Orchard", Hectares: 0.8, SoilType: "Loamy", IrrigationType: "Sprinkler",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	var event core.Event
	decodeInto(t, msg, &event)
	require.Equal(t, user.ID, event.UserID)
	require.Equal(t, core.EntityParcel, event.Entity)
	require.Equal(t, 4, event.Stats.PlotsManaged)
}
