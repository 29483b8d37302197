// Package ssdp announces the media server over SSDP multicast and answers
// M-SEARCH discovery requests.
package ssdp

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/jmylchreest/dlnad/internal/upnp"
)

const (
	multicastAddr = "239.255.255.250:1900"
	maxAge        = 1800
	// packetSize bounds an incoming SSDP datagram.
	packetSize = 2048
)

// Advertiser owns the SSDP socket: periodic alive NOTIFY bursts, byebye
// on shutdown, and unicast M-SEARCH answers.
type Advertiser struct {
	udn      string
	ip       string
	port     int
	interval time.Duration
	logger   *slog.Logger

	pconn net.PacketConn
	conn  *ipv4.PacketConn
	group *net.UDPAddr

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an Advertiser for the device udn reachable at ip:port.
func New(udn, ip string, port int, interval time.Duration, logger *slog.Logger) *Advertiser {
	return &Advertiser{
		udn:      udn,
		ip:       ip,
		port:     port,
		interval: interval,
		logger:   logger.With("component", "ssdp"),
		done:     make(chan struct{}),
	}
}

// notifyTypes returns the NT/USN pairs announced for this device.
func (a *Advertiser) notifyTypes() [][2]string {
	types := [][2]string{
		{"upnp:rootdevice", a.udn + "::upnp:rootdevice"},
		{a.udn, a.udn},
		{upnp.DeviceType, a.udn + "::" + upnp.DeviceType},
	}
	for _, svc := range upnp.Services() {
		types = append(types, [2]string{svc.ServiceType, a.udn + "::" + svc.ServiceType})
	}
	return types
}

func (a *Advertiser) location() string {
	return fmt.Sprintf("http://%s:%d%s", a.ip, a.port, upnp.RootDescPath)
}

// Start opens the multicast socket, joins the SSDP group on every
// multicast-capable interface, and launches the notify and responder
// loops.
func (a *Advertiser) Start() error {
	group, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return fmt.Errorf("resolving ssdp group: %w", err)
	}
	pconn, err := net.ListenPacket("udp4", multicastAddr)
	if err != nil {
		return fmt.Errorf("opening ssdp socket: %w", err)
	}

	a.group = group
	a.pconn = pconn
	a.conn = ipv4.NewPacketConn(pconn)

	joined := 0
	ifaces, err := net.Interfaces()
	if err != nil {
		pconn.Close()
		return fmt.Errorf("listing interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if err := a.conn.JoinGroup(&iface, group); err != nil {
			a.logger.Debug("cannot join ssdp group", "interface", iface.Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		pconn.Close()
		return fmt.Errorf("no multicast-capable interface joined the ssdp group")
	}
	a.conn.SetMulticastTTL(2)

	a.logger.Info("ssdp advertiser started",
		"location", a.location(), "interval", a.interval, "interfaces", joined)

	a.wg.Add(2)
	go a.notifyLoop()
	go a.serve()
	return nil
}

// Stop sends the byebye burst and tears the socket down.
func (a *Advertiser) Stop() {
	close(a.done)
	a.sendByebye()
	a.pconn.Close()
	a.wg.Wait()
	a.logger.Info("ssdp advertiser stopped")
}

func (a *Advertiser) notifyLoop() {
	defer a.wg.Done()

	// Announce immediately, then on the configured interval.
	a.sendAlive()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.sendAlive()
		case <-a.done:
			return
		}
	}
}

func (a *Advertiser) sendAlive() {
	for _, nt := range a.notifyTypes() {
		msg := "NOTIFY * HTTP/1.1\r\n" +
			"HOST: " + multicastAddr + "\r\n" +
			fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", maxAge) +
			"LOCATION: " + a.location() + "\r\n" +
			"SERVER: " + upnp.ServerHeader() + "\r\n" +
			"NT: " + nt[0] + "\r\n" +
			"USN: " + nt[1] + "\r\n" +
			"NTS: ssdp:alive\r\n\r\n"
		if _, err := a.pconn.WriteTo([]byte(msg), a.group); err != nil {
			a.logger.Debug("ssdp notify failed", "error", err)
			return
		}
	}
}

func (a *Advertiser) sendByebye() {
	for _, nt := range a.notifyTypes() {
		msg := "NOTIFY * HTTP/1.1\r\n" +
			"HOST: " + multicastAddr + "\r\n" +
			"NT: " + nt[0] + "\r\n" +
			"USN: " + nt[1] + "\r\n" +
			"NTS: ssdp:byebye\r\n\r\n"
		if _, err := a.pconn.WriteTo([]byte(msg), a.group); err != nil {
			return
		}
	}
}

func (a *Advertiser) serve() {
	defer a.wg.Done()

	buf := make([]byte, packetSize)
	for {
		n, _, src, err := a.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-a.done:
				return
			default:
			}
			a.logger.Debug("ssdp read failed", "error", err)
			return
		}
		st, ok := parseMSearch(buf[:n])
		if !ok {
			continue
		}
		a.respond(src, st)
	}
}

// respond answers an M-SEARCH with one unicast response per matching
// search target. "ssdp:all" matches everything.
func (a *Advertiser) respond(src net.Addr, st string) {
	for _, nt := range a.notifyTypes() {
		if st != "ssdp:all" && st != nt[0] {
			continue
		}
		msg := "HTTP/1.1 200 OK\r\n" +
			fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", maxAge) +
			"DATE: " + time.Now().UTC().Format(time.RFC1123) + "\r\n" +
			"EXT:\r\n" +
			"LOCATION: " + a.location() + "\r\n" +
			"SERVER: " + upnp.ServerHeader() + "\r\n" +
			"ST: " + nt[0] + "\r\n" +
			"USN: " + nt[1] + "\r\n\r\n"
		if _, err := a.pconn.WriteTo([]byte(msg), src); err != nil {
			a.logger.Debug("ssdp response failed", "peer", src.String(), "error", err)
			return
		}
	}
}

// parseMSearch extracts the ST header from an M-SEARCH discover request.
func parseMSearch(packet []byte) (string, bool) {
	r := textproto.NewReader(bufio.NewReader(strings.NewReader(string(packet))))
	line, err := r.ReadLine()
	if err != nil || !strings.HasPrefix(line, "M-SEARCH ") {
		return "", false
	}
	headers, err := r.ReadMIMEHeader()
	if err != nil && len(headers) == 0 {
		return "", false
	}
	if !strings.EqualFold(headers.Get("Man"), `"ssdp:discover"`) {
		return "", false
	}
	st := headers.Get("St")
	if st == "" {
		return "", false
	}
	return st, true
}
