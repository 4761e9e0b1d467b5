//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/spectra-data/linescan/internal/monitoring"
)

// ReplayPCAP reads a packet capture and hands each UDP payload on udpPort to
// emit, in file order. Used to drive the datagram decode path from recorded
// sensor traffic. Only available when building with -tags=pcap.
func ReplayPCAP(ctx context.Context, pcapFile string, udpPort int, emit func(payload []byte) error) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open pcap file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	count := 0
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("pcap replay stopping after %d packets: %v", count, ctx.Err())
			return ctx.Err()
		case packet := <-source.Packets():
			if packet == nil {
				monitoring.Logf("pcap replay complete: %d packets", count)
				return nil
			}
			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			count++
			if err := emit(udp.Payload); err != nil {
				return fmt.Errorf("replay emit failed at packet %d: %w", count, err)
			}
		}
	}
}
