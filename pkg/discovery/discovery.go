package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/xplane-protocol/xpc-go/pkg/wire"
)

// Beacon multicast group.
const (
	DefaultGroupIP = "239.255.1.1"
	DefaultPort    = 49707

	// DefaultScanTimeout covers several beacon intervals; hosts announce
	// roughly once per second.
	DefaultScanTimeout = 3 * time.Second

	readPollInterval = 200 * time.Millisecond
	maxBeaconSize    = 1024
)

// Host is one simulator instance seen on the multicast group.
type Host struct {
	// Addr is the sender's IP address.
	Addr string

	// Beacon is the decoded announcement. Beacon.Port is the UDP port the
	// host accepts protocol traffic on.
	Beacon wire.Beacon

	// LastSeen is when the most recent beacon arrived.
	LastSeen time.Time
}

// String renders a host the way listing tools print it.
func (h Host) String() string {
	return fmt.Sprintf("%s:%d (%s, %d.%d)",
		h.Addr, h.Beacon.Port, h.Beacon.ComputerName,
		h.Beacon.VersionMajor, h.Beacon.VersionMinor)
}

// Options configures a scan.
type Options struct {
	// GroupIP and GroupPort override the multicast group. Zero values use
	// the defaults.
	GroupIP   string
	GroupPort int

	// Interface restricts listening to one network interface.
	// Nil means the system default.
	Interface *net.Interface
}

func (o *Options) groupAddr() (*net.UDPAddr, error) {
	ip := o.GroupIP
	if ip == "" {
		ip = DefaultGroupIP
	}
	port := o.GroupPort
	if port == 0 {
		port = DefaultPort
	}
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return nil, fmt.Errorf("resolve multicast group: %w", err)
	}
	return addr, nil
}

// Discover joins the beacon multicast group and collects distinct hosts
// until the timeout or the context expires. A host is identified by its
// sender address plus beacon host id, so a restarted instance on the same
// machine shows up once with its latest beacon.
func Discover(ctx context.Context, opts Options, timeout time.Duration) ([]Host, error) {
	addr, err := opts.groupAddr()
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp4", opts.Interface, addr)
	if err != nil {
		return nil, fmt.Errorf("join multicast group %s: %w", addr, err)
	}
	defer conn.Close()

	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return scan(ctx, conn, timeout)
}

// scan reads beacons off conn until the deadline. Separated from Discover so
// tests can drive it with a plain loopback socket.
func scan(ctx context.Context, conn net.PacketConn, timeout time.Duration) ([]Host, error) {
	type hostKey struct {
		addr string
		id   int32
	}
	seen := make(map[hostKey]int)
	var hosts []Host

	buf := make([]byte, maxBeaconSize)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return hosts, ctx.Err()
		default:
		}

		poll := readPollInterval
		if remaining := time.Until(deadline); remaining < poll {
			poll = remaining
		}
		if err := conn.SetReadDeadline(time.Now().Add(poll)); err != nil {
			return hosts, fmt.Errorf("set read deadline: %w", err)
		}

		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return hosts, fmt.Errorf("read beacon: %w", err)
		}

		beacon, err := wire.DecodeBeacon(buf[:n])
		if err != nil {
			// The group carries other traffic on some networks; skip
			// anything that is not a beacon.
			continue
		}

		ip := from.String()
		if udp, ok := from.(*net.UDPAddr); ok {
			ip = udp.IP.String()
		}
		host := Host{Addr: ip, Beacon: *beacon, LastSeen: time.Now()}

		key := hostKey{addr: ip, id: beacon.HostID}
		if i, ok := seen[key]; ok {
			hosts[i] = host
			continue
		}
		seen[key] = len(hosts)
		hosts = append(hosts, host)
	}
	return hosts, nil
}
