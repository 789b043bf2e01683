package metric

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidthor/smartcfg/pkg/config"
	smerrors "github.com/davidthor/smartcfg/pkg/errors"
	"github.com/davidthor/smartcfg/pkg/store"
)

func TestMetrics_UsageTracker(t *testing.T) {
	m := New()

	doc, err := config.Parse([]byte(`{"version":1,"platforms":[],"entries":[
		{"key":"max_hp","type":"Int","value":100}
	]}`))
	require.NoError(t, err)

	opts := store.DefaultOptions()
	opts.Usage = m
	s := store.New(opts)
	s.Load(doc)

	s.GetInt("max_hp")
	s.GetInt("max_hp")
	s.GetInt("missing")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.KeyAccesses.WithLabelValues("max_hp")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.KeyAccesses.WithLabelValues("missing")))
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.LoadCompleted("remote", nil)
	m.LoadCompleted("local", errors.New("boom"))
	m.LoadCompleted("remote", fmt.Errorf("load: %w", smerrors.TransportFailure("download", errors.New("timeout"))))
	m.LanguageSelected("French")
	m.ObserveDiagnostics([]config.Diagnostic{
		{Severity: config.SeverityError, Code: smerrors.ErrCodeTypeMismatch},
		{Severity: config.SeverityError, Code: smerrors.ErrCodeTypeMismatch},
		{Severity: config.SeverityWarning, Code: smerrors.ErrCodeMissingLanguage},
	})
	m.SetEntries(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues("remote", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues("local", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues("remote", "transport_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LanguageSelections.WithLabelValues("French")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("TYPE_MISMATCH", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("MISSING_LANGUAGE", "warning")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Entries))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.KeyAccessed("app_name")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `smartcfg_store_key_accesses_total{key="app_name"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
