package protocol

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"
)

// SocketOptions are applied to the IPv4 socket after it is bound. Zero values
// keep the system defaults.
type SocketOptions struct {
	TOS int
	TTL int
}

type udpConnector struct {
	conn *net.UDPConn
}

func CreateUdpAddress(addressString string, port int) (*net.UDPAddr, error) {
	address := net.JoinHostPort(addressString, strconv.Itoa(port))
	udpAddress, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", address, err)
	}
	return udpAddress, nil
}

// ListenUDP binds a connector on port; port 0 picks an ephemeral port.
func ListenUDP(port int, options SocketOptions) (Connector, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("listening on udp port %d: %w", port, err)
	}
	if err := applySocketOptions(conn, options); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &udpConnector{conn: conn}, nil
}

func applySocketOptions(conn *net.UDPConn, options SocketOptions) error {
	ipConn := ipv4.NewConn(conn)
	if options.TOS != 0 {
		if err := ipConn.SetTOS(options.TOS); err != nil {
			return fmt.Errorf("setting TOS %d: %w", options.TOS, err)
		}
	}
	if options.TTL != 0 {
		if err := ipConn.SetTTL(options.TTL); err != nil {
			return fmt.Errorf("setting TTL %d: %w", options.TTL, err)
		}
	}
	return nil
}

func (connector *udpConnector) LocalAddr() net.Addr {
	return connector.conn.LocalAddr()
}

func (connector *udpConnector) Close() error {
	return connector.conn.Close()
}

func (connector *udpConnector) Write(buffer []byte, addr net.Addr) (statusCode, int, error) {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fail, 0, fmt.Errorf("unsupported address %v", addr)
	}
	n, err := connector.conn.WriteToUDP(buffer, udpAddr)
	if err != nil {
		return fail, n, err
	}
	return success, n, nil
}

func (connector *udpConnector) Read(buffer []byte, deadline time.Time) (statusCode, int, net.Addr, error) {
	if err := connector.conn.SetReadDeadline(deadline); err != nil {
		return fail, 0, nil, err
	}
	n, addr, err := connector.conn.ReadFromUDP(buffer)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return timeout, 0, nil, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return fail, 0, nil, ErrConnectorClosed
		}
		return fail, n, nil, err
	}
	return success, n, addr, nil
}
