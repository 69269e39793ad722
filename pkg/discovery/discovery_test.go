package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/xplane-protocol/xpc-go/pkg/wire"
)

func loopbackPair(t *testing.T) (listener *net.UDPConn, send func([]byte)) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	sender, err := net.DialUDP("udp4", nil, conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { sender.Close() })

	return conn, func(data []byte) {
		if _, err := sender.Write(data); err != nil {
			t.Errorf("send: %v", err)
		}
	}
}

func encodeBeacon(t *testing.T, b wire.Beacon) []byte {
	t.Helper()
	data, err := wire.EncodeBeacon(&b)
	if err != nil {
		t.Fatalf("encode beacon: %v", err)
	}
	return data
}

func TestScanCollectsDistinctHosts(t *testing.T) {
	conn, send := loopbackPair(t)

	beacon := wire.Beacon{
		VersionMajor: 1, VersionMinor: 2,
		HostID: 1, VersionNumber: 121500, Role: 1,
		Port: 49000, ComputerName: "sim-desktop",
	}

	other := beacon
	other.HostID = 2
	other.Port = 49010
	other.ComputerName = "sim-laptop"
	first := encodeBeacon(t, beacon)
	second := encodeBeacon(t, other)

	go func() {
		// Same host twice, then a second instance with another id.
		send(first)
		send(first)
		send(second)
	}()

	hosts, err := scan(context.Background(), conn, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("got %d hosts, want 2: %v", len(hosts), hosts)
	}
	if hosts[0].Beacon.ComputerName != "sim-desktop" || hosts[0].Beacon.Port != 49000 {
		t.Errorf("hosts[0] = %v", hosts[0])
	}
	if hosts[1].Beacon.HostID != 2 {
		t.Errorf("hosts[1] = %v", hosts[1])
	}
	if hosts[0].Addr != "127.0.0.1" {
		t.Errorf("Addr = %q", hosts[0].Addr)
	}
}

func TestScanSkipsForeignTraffic(t *testing.T) {
	conn, send := loopbackPair(t)

	beacon := encodeBeacon(t, wire.Beacon{HostID: 7, Port: 49000, ComputerName: "sim"})
	go func() {
		send([]byte("not a beacon"))
		send(beacon)
	}()

	hosts, err := scan(context.Background(), conn, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(hosts) != 1 || hosts[0].Beacon.HostID != 7 {
		t.Fatalf("hosts = %v", hosts)
	}
}

func TestScanEmptyNetwork(t *testing.T) {
	conn, _ := loopbackPair(t)

	start := time.Now()
	hosts, err := scan(context.Background(), conn, 250*time.Millisecond)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(hosts) != 0 {
		t.Fatalf("hosts = %v", hosts)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("scan returned after %v, should wait out the timeout", elapsed)
	}
}

func TestScanContextCancel(t *testing.T) {
	conn, _ := loopbackPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scan(ctx, conn, time.Second)
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHostString(t *testing.T) {
	h := Host{
		Addr: "192.168.1.5",
		Beacon: wire.Beacon{
			VersionMajor: 1, VersionMinor: 2,
			Port: 49000, ComputerName: "hangar",
		},
	}
	want := "192.168.1.5:49000 (hangar, 1.2)"
	if got := h.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
