package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-drift/motion/pkg/animation"
)

func newTestServer(t *testing.T, cfg ServerConfig) (*harness, *httptest.Server) {
	t.Helper()
	h := newHarness(t, DefaultConfig())
	srv := NewServer(h.s, cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return h, ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{})
	var health map[string]string
	if code := getJSON(t, ts.URL+"/health", &health); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}
}

func TestServer_StatsAndEntries(t *testing.T) {
	h, ts := newTestServer(t, ServerConfig{})
	handle := h.register(h.spec("fade", animation.Fade, 0, 1, time.Second))
	h.tick(5, frame)

	var stats struct {
		Running  int    `json:"running"`
		Cap      int    `json:"cap"`
		Fidelity string `json:"fidelity"`
		Ticks    uint64 `json:"ticks"`
	}
	getJSON(t, ts.URL+"/stats", &stats)
	if stats.Running != 1 || stats.Cap != DefaultMaxConcurrency || stats.Fidelity != "full" || stats.Ticks != 5 {
		t.Errorf("stats = %+v", stats)
	}

	var entry struct {
		Handle uint64  `json:"handle"`
		Kind   string  `json:"kind"`
		State  string  `json:"state"`
		Value  float64 `json:"value"`
	}
	if code := getJSON(t, fmt.Sprintf("%s/entries/%d", ts.URL, handle), &entry); code != http.StatusOK {
		t.Fatalf("entry status = %d", code)
	}
	if entry.Handle != uint64(handle) || entry.Kind != "fade" || entry.State != "running" || entry.Value != 0.05 {
		t.Errorf("entry = %+v", entry)
	}

	if code := getJSON(t, ts.URL+"/entries/9999", nil); code != http.StatusNotFound {
		t.Errorf("unknown entry status = %d, want 404", code)
	}
	if code := getJSON(t, ts.URL+"/entries/abc", nil); code != http.StatusBadRequest {
		t.Errorf("bad handle status = %d, want 400", code)
	}
}

func TestServer_TickFilters(t *testing.T) {
	h, ts := newTestServer(t, ServerConfig{})
	h.rec.FailWith("bad", fmt.Errorf("boom"))
	captureErrors(t)
	h.tick(3, frame)
	h.register(h.spec("bad", animation.Fade, 0, 1, time.Second))
	h.tick(3, frame)

	var timeline TickTimeline
	getJSON(t, ts.URL+"/ticks", &timeline)
	if len(timeline.Samples) != 6 {
		t.Fatalf("samples = %d, want 6", len(timeline.Samples))
	}

	getJSON(t, ts.URL+"/ticks?limit=2", &timeline)
	if len(timeline.Samples) != 2 {
		t.Errorf("limited samples = %d, want 2", len(timeline.Samples))
	}

	getJSON(t, ts.URL+"/ticks?failed=true", &timeline)
	if len(timeline.Samples) != 1 || timeline.Samples[0].Counts.Failed != 1 {
		t.Errorf("failed samples = %+v", timeline.Samples)
	}
}

func TestServer_Metrics(t *testing.T) {
	h, ts := newTestServer(t, ServerConfig{})
	h.register(h.spec("a", animation.Fade, 0, 1, time.Second))
	h.register(h.spec("b", animation.Fade, 0, 1, frame))
	h.tick(1, frame)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		"motion_scheduler_running 1",
		"motion_scheduler_completed_total 1",
		"motion_scheduler_registered_total 2",
		"motion_scheduler_concurrency_cap 1000",
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServer_RequestCounter(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	srv := NewServer(h.s, ServerConfig{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	getJSON(t, ts.URL+"/entries/1", nil)
	getJSON(t, ts.URL+"/entries/2", nil)

	families, err := srv.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() != "motion_diagnostics_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["path"] == "/entries/{handle}" && labels["status"] == "404" {
				found = m.GetCounter().GetValue() == 2
			}
		}
	}
	if !found {
		t.Error("requests were not counted by route pattern")
	}
}

func TestServer_Effects(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{})
	var effects struct {
		Available bool              `json:"available"`
		Fidelity  string            `json:"fidelity"`
		Fallbacks map[string]string `json:"fallbacks"`
	}
	getJSON(t, ts.URL+"/effects", &effects)
	if effects.Available || effects.Fidelity != "full" || len(effects.Fallbacks) != 0 {
		t.Errorf("effects = %+v", effects)
	}
}

func TestServer_Runtime(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{})
	if code := getJSON(t, ts.URL+"/runtime", nil); code != http.StatusServiceUnavailable {
		t.Errorf("status without sampler = %d, want 503", code)
	}

	sampler := NewRuntimeSampler(nil, time.Minute, time.Second)
	sampler.Record()
	sampler.Record()
	_, ts = newTestServer(t, ServerConfig{Runtime: sampler})
	var resp struct {
		Samples []RuntimeSample `json:"samples"`
	}
	getJSON(t, ts.URL+"/runtime?limit=1", &resp)
	if len(resp.Samples) != 1 || resp.Samples[0].HeapInuse == 0 {
		t.Errorf("samples = %+v", resp.Samples)
	}
	getJSON(t, ts.URL+"/runtime?overrun=true", &resp)
	if len(resp.Samples) != 0 {
		t.Errorf("overrun filter kept idle samples: %+v", resp.Samples)
	}
}

func TestServer_CORS(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{AllowedOrigins: []string{"http://dash.local"}})
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/stats", nil)
	req.Header.Set("Origin", "http://dash.local")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestServer_Stream(t *testing.T) {
	h, ts := newTestServer(t, ServerConfig{StreamInterval: 5 * time.Millisecond})
	h.register(h.spec("a", animation.Fade, 0, 1, time.Second))
	h.tick(1, frame)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 2; i++ {
		var m struct {
			Running int `json:"running"`
		}
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if m.Running != 1 {
			t.Errorf("streamed running = %d, want 1", m.Running)
		}
	}
}

func TestServer_StartShutdown(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	srv := NewServer(h.s, ServerConfig{Addr: "127.0.0.1:0"})
	addr, err := srv.Start()
	if err != nil {
		t.Fatal(err)
	}

	var health map[string]string
	if code := getJSON(t, "http://"+addr+"/health", &health); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if again, _ := srv.Start(); again != addr {
		t.Errorf("second Start = %s, want %s", again, addr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := http.Get("http://" + addr + "/health"); err == nil {
		t.Error("server still answering after Shutdown")
	}
}
