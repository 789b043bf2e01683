package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/metric"
	"github.com/davidthor/smartcfg/pkg/service"
	"github.com/davidthor/smartcfg/pkg/store"
	"github.com/davidthor/smartcfg/pkg/transfer"
)

const testDoc = `{"version":1,"platforms":[],"entries":[
	{"key":"app_name","type":"String","value":"Demo"},
	{"key":"max_hp","type":"Int","value":100},
	{"key":"speed","type":"Float","value":2.5},
	{"key":"ads","type":"Bool","value":true},
	{"key":"greeting","type":"Translatable","value":{"English":"Hello","French":"Bonjour"}}
]}`

type blockingTransfer struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingTransfer) Download(ctx context.Context, _ transfer.ProgressFunc) ([]byte, error) {
	close(b.started)
	<-b.release
	return []byte(testDoc), nil
}

func (b *blockingTransfer) Upload(context.Context, []byte, transfer.ProgressFunc) error {
	return nil
}

func newTestServer(t *testing.T, tr transfer.Transfer) (*Server, *httptest.Server) {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(testDoc), 0644))

	m := metric.New()
	stOpts := store.DefaultOptions()
	stOpts.Usage = m
	svc := service.New(store.New(stOpts), service.Options{Transfer: tr, LocalFile: path, Metrics: m})
	require.NoError(t, svc.LoadFromLocal(context.Background()))

	s := New(svc, Options{Metrics: m.Handler()})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestValues(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		path   string
		status int
		value  interface{}
	}{
		{"/v1/values/app_name", http.StatusOK, "Demo"},
		{"/v1/values/max_hp?type=int", http.StatusOK, float64(100)},
		{"/v1/values/max_hp", http.StatusOK, "100"},
		{"/v1/values/speed?type=float", http.StatusOK, 2.5},
		{"/v1/values/ads?type=bool", http.StatusOK, true},
		{"/v1/values/greeting?type=string", http.StatusOK, "Hello"},
		{"/v1/values/missing", http.StatusNotFound, nil},
		{"/v1/values/max_hp?type=string", http.StatusNotFound, nil},
		{"/v1/values/max_hp?type=decimal", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var body map[string]interface{}
			status := getJSON(t, ts.URL+tt.path, &body)
			assert.Equal(t, tt.status, status)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.value, body["value"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestLanguage(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var lang map[string]string
	getJSON(t, ts.URL+"/v1/language", &lang)
	assert.Equal(t, "English", lang["language"])

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/language", strings.NewReader(`{"language":"French"}`))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var value map[string]interface{}
	getJSON(t, ts.URL+"/v1/values/greeting", &value)
	assert.Equal(t, "Bonjour", value["value"])

	var langs map[string]interface{}
	getJSON(t, ts.URL+"/v1/languages", &langs)
	assert.Equal(t, "French", langs["current"])
	assert.Equal(t, []interface{}{"English", "French"}, langs["languages"])
}

func TestLanguage_Invalid(t *testing.T) {
	_, ts := newTestServer(t, nil)

	for _, body := range []string{`{"language":"not a language"}`, `nope`} {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/language", strings.NewReader(body))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestReload(t *testing.T) {
	tr := &blockingTransfer{release: make(chan struct{}), started: make(chan struct{})}
	_, ts := newTestServer(t, tr)

	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/v1/reload", "application/json", nil)
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()

	<-tr.started
	resp, err := http.Post(ts.URL+"/v1/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(tr.release)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestReload_FallsBackToLocal(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/v1/reload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "local", body["source"])
}

func TestEvents(t *testing.T) {
	s, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/language", strings.NewReader(`{"language":"French"}`))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventLanguageSelected, ev.Event)
	assert.Equal(t, "French", ev.Language)
	assert.NotEmpty(t, ev.ID)

	resp, err = http.Post(ts.URL+"/v1/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventConfigLoaded, ev.Event)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var v map[string]interface{}
	getJSON(t, ts.URL+"/v1/values/app_name", &v)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `smartcfg_store_key_accesses_total{key="app_name"} 1`)
	assert.Contains(t, string(body), `smartcfg_service_loads_total{outcome="success",source="local"} 1`)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var body map[string]interface{}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", &body))
	assert.Equal(t, true, body["loaded"])
}
