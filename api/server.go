// Package api is the daemon's HTTP surface: latest-frame snapshots,
// throughput statistics, channel control, and a publish event stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spectra-data/linescan/internal/channel"
	"github.com/spectra-data/linescan/internal/config"
	"github.com/spectra-data/linescan/internal/frame"
	"github.com/spectra-data/linescan/internal/serialport"
	"github.com/spectra-data/linescan/internal/version"
)

// Server exposes one acquisition channel over HTTP.
type Server struct {
	ch          *channel.Channel
	cfg         *config.Config
	broadcaster *Broadcaster
}

// NewServer wires the API to a channel, the daemon config (supplying
// transport defaults for connect requests), and the publish broadcaster.
func NewServer(ch *channel.Channel, cfg *config.Config, b *Broadcaster) *Server {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Server{ch: ch, cfg: cfg, broadcaster: b}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshot", s.snapshotHandler)
	mux.HandleFunc("/api/stats", s.statsHandler)
	mux.HandleFunc("/api/connect", s.connectHandler)
	mux.HandleFunc("/api/disconnect", s.disconnectHandler)
	mux.HandleFunc("/api/stream", s.streamHandler)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "linescan acquisition server %s", version.String())
}

// snapshotResponse is the JSON shape of /api/snapshot.
type snapshotResponse struct {
	Samples      []uint16  `json:"samples"`
	SampleCount  int       `json:"sample_count"`
	Sequence     uint32    `json:"sequence"`
	CapturedAt   time.Time `json:"captured_at"`
	PublishCount uint64    `json:"publish_count"`
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, publishCount := s.ch.Slot().Snapshot(nil)
	writeJSON(w, snapshotResponse{
		Samples:      snap.Samples,
		SampleCount:  snap.SampleCount,
		Sequence:     snap.Sequence,
		CapturedAt:   snap.CapturedAt,
		PublishCount: publishCount,
	})
}

// statsResponse is the JSON shape of /api/stats.
type statsResponse struct {
	frame.StatsSnapshot
	State     string `json:"state"`
	Kind      string `json:"kind,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statsResponse{
		StatsSnapshot: s.ch.Stats().Snapshot(),
		State:         s.ch.State().String(),
		Kind:          string(s.ch.Kind()),
		SessionID:     s.ch.SessionID(),
	}
	if err := s.ch.Err(); err != nil {
		resp.LastError = err.Error()
	}
	writeJSON(w, resp)
}

// connectRequest selects the transport for /api/connect. Omitted parameters
// fall back to the daemon configuration.
type connectRequest struct {
	Kind       string `json:"kind"`
	SerialPath string `json:"serial_path,omitempty"`
	BaudRate   int    `json:"baud_rate,omitempty"`
	UDPAddress string `json:"udp_address,omitempty"`
}

func (s *Server) connectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}

	cfg := channel.Config{
		Kind:        channel.Kind(req.Kind),
		ReadTimeout: s.cfg.GetReadTimeout(),
		SerialPath:  s.cfg.GetSerialPath(),
		SerialOptions: serialport.PortOptions{
			BaudRate: s.cfg.GetSerialBaudRate(),
			DataBits: s.cfg.GetSerialDataBits(),
			StopBits: s.cfg.GetSerialStopBits(),
			Parity:   s.cfg.GetSerialParity(),
		},
		UDPAddress: s.cfg.GetUDPAddress(),
		RcvBuf:     s.cfg.GetRcvBuf(),
	}
	if req.SerialPath != "" {
		cfg.SerialPath = req.SerialPath
	}
	if req.BaudRate > 0 {
		cfg.SerialOptions.BaudRate = req.BaudRate
	}
	if req.UDPAddress != "" {
		cfg.UDPAddress = req.UDPAddress
	}

	switch err := s.ch.Start(cfg); {
	case err == nil:
		writeJSON(w, map[string]string{
			"state":      s.ch.State().String(),
			"session_id": s.ch.SessionID(),
		})
	case errors.Is(err, channel.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, channel.ErrUnknownKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, channel.ErrTransportUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) disconnectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.ch.Stop()
	writeJSON(w, map[string]string{"state": s.ch.State().String()})
}

// streamHandler emits one Server-Sent Event per publish. Laggy clients miss
// events rather than backpressuring the decode goroutine.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.broadcaster == nil {
		http.Error(w, "streaming not enabled", http.StatusNotImplemented)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, events := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
