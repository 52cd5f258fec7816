package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"devicelink/pkg/alpaca"
)

// DiscoveryResponder answers Alpaca discovery requests with the port of the
// HTTP server.
type DiscoveryResponder struct {
	addr           string
	port           int
	alpacaResponse string
	logger         log.FieldLogger

	ready chan net.Addr
}

// NewDiscoveryResponder creates a responder listening on addr:port that
// advertises alpacaPort. Port 0 picks an ephemeral port, see Ready.
func NewDiscoveryResponder(addr string, port, alpacaPort int, logger log.FieldLogger) *DiscoveryResponder {
	return &DiscoveryResponder{
		addr:           addr,
		port:           port,
		alpacaResponse: fmt.Sprintf(`{"AlpacaPort": %d}`, alpacaPort),
		logger:         logger,
		ready:          make(chan net.Addr, 1),
	}
}

// Ready delivers the bound address once Run is listening.
func (d *DiscoveryResponder) Ready() <-chan net.Addr {
	return d.ready
}

func (d *DiscoveryResponder) Run(ctx context.Context) error {
	buf := make([]byte, 1024)

	deviceAddress, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(d.addr, strconv.Itoa(d.port)))
	if err != nil {
		return fmt.Errorf("cannot resolve device address: %w", err)
	}

	sock, err := net.ListenUDP("udp4", deviceAddress)
	if err != nil {
		return fmt.Errorf("cannot bind discovery socket: %w", err)
	}
	defer sock.Close()

	d.ready <- sock.LocalAddr()
	d.logger.Debugf("Discovery responder started on %s", sock.LocalAddr())
	for ctx.Err() == nil {
		// Set a read deadline to periodically check for context cancellation
		sock.SetReadDeadline(time.Now().Add(250 * time.Millisecond))

		n, addr, err := sock.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			d.logger.Debugf("Error reading from socket: %v", err)
			continue
		}

		data := string(buf[:n])
		d.logger.Debugf("Received %s from %s", data, addr)

		if strings.Contains(data, alpaca.DiscoveryMessage) {
			if _, err := sock.WriteToUDP([]byte(d.alpacaResponse), addr); err != nil {
				d.logger.Errorf("Error writing to socket: %v", err)
			}
		}
	}
	return nil
}
