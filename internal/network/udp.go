// Package network abstracts the UDP transport so the acquisition channel can
// run against a real socket, a scripted mock, or (with the pcap build tag) a
// packet capture replay.
package network

import (
	"net"
	"time"
)

// UDPSocket is the slice of *net.UDPConn the channel needs. The abstraction
// exists so tests can feed datagrams deterministically.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// SocketFactory creates UDP sockets; injected into the channel.
type SocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealSocketFactory binds real sockets with net.ListenUDP.
type RealSocketFactory struct{}

// NewRealSocketFactory returns a factory backed by the OS network stack.
func NewRealSocketFactory() *RealSocketFactory {
	return &RealSocketFactory{}
}

// ListenUDP binds a UDP socket on laddr.
func (f *RealSocketFactory) ListenUDP(netw string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(netw, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
