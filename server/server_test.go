// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touristsafety/safemap/api"
	"github.com/touristsafety/safemap/cluster"
	"github.com/touristsafety/safemap/tracking"
)

func setupServerTest(t *testing.T) (*gin.Engine, *Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := tracking.NewRepository(db)
	require.NoError(t, repo.CreateSchema(context.Background()))

	srv := NewServer(repo, tracking.NewHub(8))

	return srv.Handler(), srv
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func register(t *testing.T, router http.Handler, name string, lat, lon float64) {
	t.Helper()

	w := do(t, router, http.MethodPost, "/register", gin.H{"name": name, "lat": lat, "lon": lon})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRegisterAPI(t *testing.T) {
	router, _ := setupServerTest(t)

	w := do(t, router, http.MethodPost, "/register", gin.H{
		"name": "device-1", "lat": 28.6139, "lon": 77.2090, "group": "Family Tour", "battery": 64,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp api.RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Tourist registered successfully", resp.Message)
	require.NotNil(t, resp.Tourist)
	assert.Equal(t, "device-1", resp.Tourist.Name)
	assert.Equal(t, tracking.DefaultSafetyScore, resp.Tourist.SafetyScore)
	assert.Equal(t, 64, resp.Tourist.Battery)
	assert.Equal(t, cluster.StatusSafe, resp.Tourist.Status)
	assert.NotEmpty(t, resp.Tourist.ID)

	// same name again keeps the first registration
	w = do(t, router, http.MethodPost, "/register", gin.H{"name": "device-1", "lat": 1.0, "lon": 1.0})
	require.Equal(t, http.StatusOK, w.Code)

	var again api.RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, resp.Tourist.ID, again.Tourist.ID)
	assert.InDelta(t, 28.6139, again.Tourist.Lat, 1e-9)
}

func TestRegisterAPIValidation(t *testing.T) {
	router, _ := setupServerTest(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing coordinates", gin.H{"name": "a"}},
		{"missing name", gin.H{"lat": 1.0, "lon": 1.0}},
		{"bad status", gin.H{"name": "a", "lat": 1.0, "lon": 1.0, "status": "lost"}},
		{"bad battery", gin.H{"name": "a", "lat": 1.0, "lon": 1.0, "battery": 120}},
		{"latitude out of range", gin.H{"name": "a", "lat": 100.0, "lon": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	w := do(t, router, http.MethodPost, "/register", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTouristsAPI(t *testing.T) {
	router, _ := setupServerTest(t)

	w := do(t, router, http.MethodGet, "/tourists", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	register(t, router, "José Núñez", 28.61, 77.21)
	register(t, router, "Sarah Smith", 28.62, 77.20)

	w = do(t, router, http.MethodGet, "/tourists", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var all []tracking.Tourist
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "José Núñez", all[0].Name)
	assert.Contains(t, w.Body.String(), `"lon":77.21`)

	w = do(t, router, http.MethodGet, "/tourists?q=jose", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var filtered []tracking.Tourist
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "José Núñez", filtered[0].Name)
}

func TestUpdateLocationAPI(t *testing.T) {
	router, srv := setupServerTest(t)
	sub := srv.hub.Subscribe()

	w := do(t, router, http.MethodPost, "/update-location", gin.H{"lat": 1.0, "lon": 1.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Name (device id) required")

	w = do(t, router, http.MethodPost, "/update-location", gin.H{"name": "ghost", "lat": 1.0, "lon": 1.0})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "please register first")

	register(t, router, "device-1", 28.6139, 77.2090)

	w = do(t, router, http.MethodPost, "/update-location", gin.H{"name": "device-1", "lat": 28.6, "lon": 77.2, "status": "WARNING"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.UpdateLocationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Location updated successfully", resp.Message)
	assert.Equal(t, tracking.DefaultBattery, resp.Tourist.Battery)

	select {
	case u := <-sub.Updates():
		assert.Equal(t, tracking.UpdateType, u.Type)
		assert.Equal(t, "device-1", u.Name)
		assert.InDelta(t, 28.6, u.Lat, 1e-9)
		assert.InDelta(t, 77.2, u.Lng, 1e-9)
		assert.Equal(t, cluster.StatusWarning, u.Status)
	default:
		t.Fatal("no update published")
	}

	w = do(t, router, http.MethodPost, "/update-location", gin.H{"name": "device-1", "lat": 28.6, "lon": 77.2, "status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/update-location", gin.H{"name": "device-1", "lat": 28.6})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapClustersAPI(t *testing.T) {
	router, _ := setupServerTest(t)

	w := do(t, router, http.MethodGet, "/api/map/clusters?source=demo", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.MapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 8, resp.Total)
	assert.Len(t, resp.Markers, 4)
	assert.Equal(t, "representative", resp.Linkage)
	assert.InDelta(t, 0.005, resp.Threshold, 1e-12)

	w = do(t, router, http.MethodGet, "/api/map/clusters?source=demo&linkage=single", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Markers, 2)

	w = do(t, router, http.MethodGet, "/api/map/clusters?source=demo&threshold=0.001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Markers, 8)

	w = do(t, router, http.MethodGet, "/api/map/clusters?source=demo&q=family", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	for _, target := range []string{
		"/api/map/clusters?threshold=abc",
		"/api/map/clusters?threshold=-1",
		"/api/map/clusters?linkage=complete",
		"/api/map/clusters?source=satellite",
	} {
		w = do(t, router, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}

	register(t, router, "device-1", 28.6139, 77.2090)
	register(t, router, "device-2", 28.6140, 77.2091)

	w = do(t, router, http.MethodGet, "/api/map/clusters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Markers, 1)
	assert.Equal(t, 2, resp.Markers[0].Count)
	assert.Equal(t, "28.6139_77.2090", resp.Markers[0].Key)
}

func TestMapProjectAPI(t *testing.T) {
	router, _ := setupServerTest(t)

	w := do(t, router, http.MethodGet, "/api/map/project?lat=28.6139&lng=77.2090", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 386.667, resp.Pixel.X, 0.001)
	assert.InDelta(t, 216.6, resp.Pixel.Y, 0.001)
	assert.True(t, resp.Inside)

	w = do(t, router, http.MethodGet, "/api/map/project?lat=0&lng=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Inside)
	assert.InDelta(t, 0, resp.Pixel.X, 1e-9)
	assert.InDelta(t, 600, resp.Pixel.Y, 1e-9)

	w = do(t, router, http.MethodGet, "/api/map/project?lat=north", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNearbyAPI(t *testing.T) {
	router, _ := setupServerTest(t)

	register(t, router, "near", 28.6169, 77.2090)
	register(t, router, "far", 28.5000, 77.0000)

	w := do(t, router, http.MethodGet, "/api/tourists/nearby?lat=28.6169&lng=77.2090", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got []tracking.Tourist
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Name)

	w = do(t, router, http.MethodGet, "/api/tourists/nearby?lat=28.6169&lng=77.2090&rings=99", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/tourists/nearby?lat=28.6169&lng=77.2090&rings=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	router, _ := setupServerTest(t)

	register(t, router, "device-1", 28.6139, 77.2090)

	w := do(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","tourists":1,"subscribers":0}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `safemap_http_requests_total{code="201",route="/register"} 1`)
	assert.Contains(t, body, "safemap_registrations_total 1")
	assert.Contains(t, body, "safemap_live_subscribers 0")
}

func TestPreflight(t *testing.T) {
	router, _ := setupServerTest(t)

	w := do(t, router, http.MethodOptions, "/register", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebsocketReceivesUpdates(t *testing.T) {
	router, srv := setupServerTest(t)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	register(t, router, "device-1", 28.6139, 77.2090)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return srv.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	w := do(t, router, http.MethodPost, "/update-location", gin.H{"name": "device-1", "lat": 28.62, "lon": 77.21, "battery": 33})
	require.Equal(t, http.StatusOK, w.Code)

	var msg map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "update", msg["type"])
	assert.Equal(t, "device-1", msg["name"])
	assert.InDelta(t, 28.62, msg["lat"], 1e-9)
	assert.InDelta(t, 77.21, msg["lon"], 1e-9)
	assert.InDelta(t, 33, msg["battery"], 1e-9)

	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return srv.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketUpgradeThroughGin(t *testing.T) {
	router, srv := setupServerTest(t)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.Eventually(t, func() bool { return srv.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		body := do(t, router, http.MethodGet, "/metrics", nil).Body.String()

		return strings.Contains(body, `safemap_http_requests_total{code="101",route="/ws"} 1`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	router, srv := setupServerTest(t)

	w := do(t, router, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusUpgradeRequired, w.Code)
	assert.Equal(t, 0, srv.hub.Len())
}
