package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("GUARD_TRANSITIONS", "")
	path := writeConfig(t, `
clocks:
  default_name: Speaker
  default_total_seconds: 300
  guard_transitions: true
rooms:
  default_name: Stage
websocket:
  ping_interval: 90s
  state_refresh_interval: 15s
  allowed_origins: ["https://clocks.example"]
`)

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.True(t, config.Clocks.GuardTransitions)
	assert.Equal(t, "Speaker", config.clocksConfig().DefaultName)
	assert.Equal(t, 300, config.clocksConfig().DefaultTotalSeconds)
	assert.Equal(t, "Stage", config.roomsConfig().DefaultName)

	gw := config.gatewayConfig().ConnectionConfig
	assert.Equal(t, 90*time.Second, gw.PingInterval)
	assert.Equal(t, 180*time.Second, gw.ReadTimeout)
	assert.Equal(t, 15*time.Second, gw.StateRefreshInterval)

	req := httptest.NewRequest(http.MethodGet, "/ws/rooms/r1", nil)
	req.Header.Set("Origin", "https://clocks.example")
	assert.True(t, gw.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, gw.CheckOrigin(req))
	assert.Equal(t, []string{"https://clocks.example"}, config.corsOrigins())
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GUARD_TRANSITIONS", "")
	config, err := loadConfig("")
	require.NoError(t, err)

	assert.False(t, config.Clocks.GuardTransitions)
	assert.Equal(t, "New clock", config.clocksConfig().DefaultName)
	assert.Equal(t, 5, config.clocksConfig().DefaultTotalSeconds)
	assert.Equal(t, "New room", config.roomsConfig().DefaultName)
	assert.Equal(t, []string{"*"}, config.corsOrigins())
}

func TestLoadConfig_EnvOverridesGuard(t *testing.T) {
	t.Setenv("GUARD_TRANSITIONS", "true")
	config, err := loadConfig("")
	require.NoError(t, err)
	assert.True(t, config.Clocks.GuardTransitions)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "clocks: [not, a, map]"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "clocks:\n  default_total_seconds: -1\n"))
	assert.Error(t, err)
}

func TestHandler_RoomAndClockFlow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	config, err := loadConfig("")
	require.NoError(t, err)

	services := setupServices(docstore.NewMemoryStore(clock), config, clock)
	srv := httptest.NewServer(newHandler(services, config))
	defer srv.Close()

	post := func(path, body string) *http.Response {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	resp := post("/api/rooms", `{"name":"Main stage"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room struct {
		Room struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"room"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	resp.Body.Close()
	assert.Equal(t, "Main stage", room.Room.Name)

	resp = post("/api/rooms/"+room.Room.ID+"/clocks", `{"total_seconds":60}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Clock struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			TotalSeconds int    `json:"total_seconds"`
		} `json:"clock"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, "New clock", created.Clock.Name)
	assert.Equal(t, 60, created.Clock.TotalSeconds)

	clockPath := "/api/rooms/" + room.Room.ID + "/clocks/" + created.Clock.ID
	resp = post(clockPath+"/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	clock.Advance(10 * time.Second)

	resp = post(clockPath+"/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stopped struct {
		Clock struct {
			Running          bool    `json:"running"`
			SecondsPassed    float64 `json:"seconds_passed"`
			RemainingSeconds float64 `json:"remaining_seconds"`
		} `json:"clock"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stopped))
	resp.Body.Close()
	assert.False(t, stopped.Clock.Running)
	assert.InDelta(t, 10, stopped.Clock.SecondsPassed, 1e-6)
	assert.InDelta(t, 50, stopped.Clock.RemainingSeconds, 1e-6)
	assert.NotEmpty(t, resp.Header.Get("X-Processing-Time-Micros"))
}

func TestHandler_HealthAndCORS(t *testing.T) {
	config, err := loadConfig("")
	require.NoError(t, err)
	clock := clockwork.NewRealClock()
	services := setupServices(docstore.NewMemoryStore(clock), config, clock)
	srv := httptest.NewServer(newHandler(services, config))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
