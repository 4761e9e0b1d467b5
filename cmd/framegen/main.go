// Command framegen produces CCD frames for bench testing: synthetic spectra
// sent as UDP datagrams at a fixed rate, the serial wire format written to a
// file for mock-port replay, or recorded datagrams replayed from a pcap
// capture (build with -tags=pcap).
//
// Usage:
//
//	go run ./cmd/framegen -mode udp -target 127.0.0.1:8080 -rate 30
//	go run ./cmd/framegen -mode serial -out frames.bin -frames 100
//	go run ./cmd/framegen -mode pcap -pcap capture.pcap -target 127.0.0.1:8080
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spectra-data/linescan/internal/decode"
	"github.com/spectra-data/linescan/internal/network"
)

var (
	mode     = flag.String("mode", "udp", "Generator mode: udp, serial, or pcap")
	target   = flag.String("target", "127.0.0.1:8080", "Destination address for udp/pcap modes")
	outPath  = flag.String("out", "frames.bin", "Output file for serial mode")
	pixels   = flag.Int("pixels", 3694, "Samples per frame")
	rate     = flag.Float64("rate", 30, "Frames per second for udp mode")
	frames   = flag.Int("frames", 0, "Frame count to emit (0 = until interrupted)")
	pcapFile = flag.String("pcap", "", "Capture file for pcap mode")
	pcapPort = flag.Int("pcap-port", 8080, "UDP port filter applied to the capture")
	checksum = flag.Bool("checksum", true, "Populate the datagram checksum field")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch *mode {
	case "udp":
		err = runUDP(ctx)
	case "serial":
		err = runSerial()
	case "pcap":
		err = runPCAP(ctx)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
	if err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}

// synthesize fills samples with a sloped baseline, noise, and a pair of
// Gaussian peaks whose centers drift with the sequence number, so consecutive
// frames are visibly distinct on a chart.
func synthesize(samples []uint16, seq uint32) {
	n := len(samples)
	c1 := float64(n)*0.3 + 40*math.Sin(float64(seq)/20)
	c2 := float64(n) * 0.7
	for i := range samples {
		x := float64(i)
		v := 200 + 0.02*x // baseline
		v += 2500 * math.Exp(-((x-c1)*(x-c1))/(2*18*18))
		v += 1200 * math.Exp(-((x-c2)*(x-c2))/(2*55*55))
		v += rand.Float64() * 30
		if v > 4095 {
			v = 4095
		}
		samples[i] = uint16(v)
	}
}

func runUDP(ctx context.Context) error {
	conn, err := net.Dial("udp", *target)
	if err != nil {
		return err
	}
	defer conn.Close()

	interval := time.Duration(float64(time.Second) / *rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("sending %d-pixel frames to %s at %.1f fps", *pixels, *target, *rate)

	samples := make([]uint16, *pixels)
	start := time.Now()
	var seq uint32
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			seq++
			synthesize(samples, seq)
			ts := uint32(time.Since(start).Microseconds())
			pkt := decode.EncodeDatagram(samples, seq, ts, *checksum)
			if _, err := conn.Write(pkt); err != nil {
				return err
			}
			if *frames > 0 && int(seq) >= *frames {
				log.Printf("sent %d frames", seq)
				return nil
			}
		}
	}
}

func runSerial() error {
	count := *frames
	if count == 0 {
		count = 100
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	samples := make([]uint16, *pixels)
	for seq := uint32(1); seq <= uint32(count); seq++ {
		synthesize(samples, seq)
		if _, err := f.Write(decode.EncodeSerialFrame(samples)); err != nil {
			return err
		}
	}
	// Trailing start byte completes the final frame on the decode side.
	if _, err := f.Write([]byte{decode.FrameStartByte}); err != nil {
		return err
	}
	log.Printf("wrote %d serial frames to %s", count, *outPath)
	return nil
}

func runPCAP(ctx context.Context) error {
	if *pcapFile == "" {
		log.Fatal("-pcap is required in pcap mode")
	}
	conn, err := net.Dial("udp", *target)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("replaying %s (udp port %d) to %s", *pcapFile, *pcapPort, *target)
	return network.ReplayPCAP(ctx, *pcapFile, *pcapPort, func(payload []byte) error {
		_, err := conn.Write(payload)
		return err
	})
}
