// Command linescand acquires CCD line-sensor frames from a serial link or a
// UDP socket and serves the latest frame, statistics, and channel control
// over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spectra-data/linescan/api"
	"github.com/spectra-data/linescan/internal/channel"
	"github.com/spectra-data/linescan/internal/config"
	"github.com/spectra-data/linescan/internal/frame"
	"github.com/spectra-data/linescan/internal/serialport"
	"github.com/spectra-data/linescan/internal/version"
)

var (
	listen     = flag.String("listen", ":9090", "HTTP listen address")
	configPath = flag.String("config", "", "Path to JSON config file (optional)")
	transport  = flag.String("transport", "", "Transport to start at boot: serial, udp, or empty to wait for /api/connect")
	serialPath = flag.String("serial", "", "Serial device path (overrides config)")
	udpAddr    = flag.String("udp", "", "UDP bind address (overrides config)")
)

func main() {
	flag.Parse()
	log.Printf("linescan %s", version.String())

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	slot := frame.NewSlot(cfg.GetPixelCapacity())
	stats := frame.NewStats()
	broadcaster := api.NewBroadcaster()

	ch := channel.New(channel.Deps{
		Slot:      slot,
		Stats:     stats,
		OnPublish: broadcaster.Notify,
	})
	defer ch.Stop()

	server := api.NewServer(ch, cfg, broadcaster)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *transport != "" {
		chCfg := channel.Config{
			Kind:        channel.Kind(*transport),
			ReadTimeout: cfg.GetReadTimeout(),
			SerialPath:  cfg.GetSerialPath(),
			SerialOptions: serialport.PortOptions{
				BaudRate: cfg.GetSerialBaudRate(),
				DataBits: cfg.GetSerialDataBits(),
				StopBits: cfg.GetSerialStopBits(),
				Parity:   cfg.GetSerialParity(),
			},
			UDPAddress: cfg.GetUDPAddress(),
			RcvBuf:     cfg.GetRcvBuf(),
		}
		if *serialPath != "" {
			chCfg.SerialPath = *serialPath
		}
		if *udpAddr != "" {
			chCfg.UDPAddress = *udpAddr
		}
		if err := ch.Start(chCfg); err != nil {
			log.Fatalf("failed to start %s channel: %v", *transport, err)
		}
		log.Printf("acquisition started: transport=%s session=%s", *transport, ch.SessionID())
	}

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: server.ServeMux(),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP server listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	ch.Stop()
	wg.Wait()
}
