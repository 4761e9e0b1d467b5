package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectra-data/linescan/internal/channel"
	"github.com/spectra-data/linescan/internal/config"
	"github.com/spectra-data/linescan/internal/decode"
	"github.com/spectra-data/linescan/internal/frame"
	"github.com/spectra-data/linescan/internal/network"
	"github.com/spectra-data/linescan/internal/serialport"
)

type testRig struct {
	server *Server
	ch     *channel.Channel
	port   *serialport.MockPort
	sock   *network.MockSocket
	b      *Broadcaster
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	port := serialport.NewMockPort()
	sock := network.NewMockSocket()
	b := NewBroadcaster()
	ch := channel.New(channel.Deps{
		Slot:          frame.NewSlot(8),
		SerialFactory: serialport.NewMockFactory(port),
		SocketFactory: network.NewMockSocketFactory(sock),
		OnPublish:     b.Notify,
	})
	t.Cleanup(ch.Stop)

	readTimeout := "5ms"
	cfg := &config.Config{ReadTimeout: &readTimeout}
	return &testRig{
		server: NewServer(ch, cfg, b),
		ch:     ch,
		port:   port,
		sock:   sock,
		b:      b,
	}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSnapshotBeforeFirstPublish(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	rec := doJSON(t, rig.server.ServeMux(), http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(0), resp.PublishCount)
	assert.Equal(t, 0, resp.SampleCount)
	assert.Len(t, resp.Samples, 8)
	for _, v := range resp.Samples {
		assert.Equal(t, uint16(0), v)
	}
}

func TestConnectDisconnectLifecycle(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	mux := rig.server.ServeMux()

	rec := doJSON(t, mux, http.MethodPost, "/api/connect", `{"kind":"serial"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "streaming", resp["state"])
	assert.NotEmpty(t, resp["session_id"])

	// Second connect while streaming conflicts.
	rec = doJSON(t, mux, http.MethodPost, "/api/connect", `{"kind":"udp"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, channel.Streaming, rig.ch.State(), "running channel untouched")

	rec = doJSON(t, mux, http.MethodPost, "/api/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, channel.Disconnected, rig.ch.State())

	// Disconnect is idempotent.
	rec = doJSON(t, mux, http.MethodPost, "/api/disconnect", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Reconnect with the other transport succeeds now.
	rec = doJSON(t, mux, http.MethodPost, "/api/connect", `{"kind":"udp"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestConnectValidation(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	mux := rig.server.ServeMux()

	rec := doJSON(t, mux, http.MethodPost, "/api/connect", `{"kind":"tcp"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/connect", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/connect", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConnectTransportUnavailable(t *testing.T) {
	t.Parallel()

	factory := serialport.NewMockFactory(nil)
	factory.Err = errors.New("device busy")
	ch := channel.New(channel.Deps{
		Slot:          frame.NewSlot(8),
		SerialFactory: factory,
	})
	server := NewServer(ch, nil, nil)

	rec := doJSON(t, server.ServeMux(), http.MethodPost, "/api/connect", `{"kind":"serial"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "device busy")
}

func TestStatsReflectsChannel(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	mux := rig.server.ServeMux()

	rec := doJSON(t, mux, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "disconnected", resp.State)
	assert.Empty(t, resp.SessionID)

	require.Equal(t, http.StatusOK,
		doJSON(t, mux, http.MethodPost, "/api/connect", `{"kind":"udp"}`).Code)

	rig.sock.Send(decode.EncodeDatagram([]uint16{1, 2}, 55, 0, true))
	waitForPublish(t, rig.ch, 1)

	rec = doJSON(t, mux, http.MethodGet, "/api/stats", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "streaming", resp.State)
	assert.Equal(t, "udp", resp.Kind)
	assert.Equal(t, uint32(55), resp.LastSequence)
	assert.NotEmpty(t, resp.SessionID)
}

func TestSnapshotAfterPublish(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	mux := rig.server.ServeMux()

	require.Equal(t, http.StatusOK,
		doJSON(t, mux, http.MethodPost, "/api/connect", `{"kind":"udp"}`).Code)

	rig.sock.Send(decode.EncodeDatagram([]uint16{9, 10, 11}, 3, 0, true))
	waitForPublish(t, rig.ch, 1)

	rec := doJSON(t, mux, http.MethodGet, "/api/snapshot", "")
	var resp snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.SampleCount)
	assert.Equal(t, []uint16{9, 10, 11}, resp.Samples[:3])
	assert.Equal(t, uint32(3), resp.Sequence)
	assert.Equal(t, uint64(1), resp.PublishCount)
}

func TestStreamEmitsPublishEvents(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	httpServer := httptest.NewServer(rig.server.ServeMux())
	defer httpServer.Close()

	resp, err := http.Get(httpServer.URL + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait until the handler has registered its subscription.
	deadline := time.Now().Add(5 * time.Second)
	for rig.b.SubscriberCount() == 0 {
		require.True(t, time.Now().Before(deadline), "subscriber never registered")
		time.Sleep(2 * time.Millisecond)
	}

	rig.b.Notify(21, 64)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev PublishEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		assert.Equal(t, uint32(21), ev.Sequence)
		assert.Equal(t, 64, ev.SampleCount)
		return
	}
	t.Fatalf("stream ended without a data event: %v", scanner.Err())
}

func TestMethodGuards(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	mux := rig.server.ServeMux()

	assert.Equal(t, http.StatusMethodNotAllowed,
		doJSON(t, mux, http.MethodPost, "/api/snapshot", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed,
		doJSON(t, mux, http.MethodPost, "/api/stats", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed,
		doJSON(t, mux, http.MethodGet, "/api/disconnect", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed,
		doJSON(t, mux, http.MethodPost, "/api/stream", "").Code)
}

func waitForPublish(t *testing.T, ch *channel.Channel, want uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ch.Slot().PublishCount() >= want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for publish count %d", want)
}
