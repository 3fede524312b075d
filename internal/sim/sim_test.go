package sim

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-fiberevent"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun(t *testing.T) {
	cfg, err := ParseConfig([]byte(exampleConfig))
	require.NoError(t, err)

	var logs syncBuffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report, err := Run(ctx, cfg, NewLogger(&logs, logiface.LevelDebug))
	require.NoError(t, err)
	require.Len(t, report.Cores, 2)

	c0, c1 := report.Cores[0], report.Cores[1]
	assert.Equal(t, 0, c0.Core)
	assert.Equal(t, 1, c1.Core)
	assert.Positive(t, c0.Interrupts)
	assert.Positive(t, c1.Interrupts)
	assert.Equal(t, 3, c0.AlarmFirings)
	assert.Zero(t, c1.AlarmFirings)
	assert.Equal(t, 1, c1.Lookups)
	assert.Zero(t, c1.LookupErrors)
	assert.Positive(t, c0.Metrics.DispatchCycles)
	assert.Positive(t, c1.Metrics.Resumes)

	out := logs.String()
	assert.Contains(t, out, `"msg":"sim: started"`)
	assert.Contains(t, out, `"msg":"sim: lookup done"`)
	assert.Contains(t, out, `"msg":"sim: alarm"`)
	assert.Contains(t, out, `"msg":"sim: stopped"`)

	var text strings.Builder
	_, err = report.WriteTo(&text)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(text.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "core 0: cycles="), lines[0])
	assert.Contains(t, lines[0], " alarms=3")
	assert.Contains(t, lines[1], " lookups=1 lookup_errors=0 ")
}

func TestRun_FinishesWithoutInterrupts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cores = 1
	cfg.Duration = 0
	cfg.Hosts = map[string][]string{"a.test": {"192.0.2.7"}}
	cfg.Lookups = []LookupConfig{
		{Host: "a.test"},
		{Host: "a.test", Network: "ip6"},
		{Host: "192.0.2.8"},
	}
	cfg.Alarms = []AlarmConfig{{Name: "once", In: time.Millisecond}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	report, err := Run(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, report.Cores, 1)
	assert.Equal(t, 2, report.Cores[0].Lookups)
	assert.Equal(t, 1, report.Cores[0].LookupErrors)
	assert.Equal(t, 1, report.Cores[0].AlarmFirings)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cores = 0
	_, err := Run(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestServeMetrics(t *testing.T) {
	st, err := fiberevent.New(fiberevent.WithCores(1), fiberevent.WithMetrics(true))
	require.NoError(t, err)
	defer st.Close()
	var ev fiberevent.Event
	require.NoError(t, st.Core(0).Claim(&ev))

	srv, err := serveMetrics("127.0.0.1:0", st, nil)
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fibersim_claimed_events{core="0"} 1`)
	assert.Contains(t, string(body), `fibersim_dispatch_cycles_total{core="0"} 0`)
}
