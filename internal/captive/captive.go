// Package captive provides the soft access-point side of the kiosk's
// network surface: the AP identity and minimal DHCP/DNS responders that
// make every client resolve and route to the kiosk regardless of what it
// asked for, so a phone joining the AP lands on the survey without manual
// configuration.
//
// The Wi-Fi chip itself, and the real DHCP/DNS protocol engines, are out
// of scope (spec.md §1 treats them as black boxes); this package states
// only the single behavior spec.md §6 requires of them: answer every
// request with the gateway IP.
package captive

import (
	"fmt"
	"log"
	"net"
)

// AccessPoint describes the soft AP's identity, as the orchestrator and
// captive responders need it. The real Wi-Fi bring-up that backs it is an
// external collaborator.
type AccessPoint interface {
	SSID() string
	GatewayIP() net.IP
}

// StaticAccessPoint is an AccessPoint whose SSID and gateway IP are fixed
// at construction; it does nothing to bring up the radio itself.
type StaticAccessPoint struct {
	ssid string
	gw   net.IP
}

// NewStaticAccessPoint returns an AccessPoint reporting the given SSID and
// gateway IP (normally the kiosk's own address on the AP subnet,
// 192.168.4.1).
func NewStaticAccessPoint(ssid string, gw net.IP) StaticAccessPoint {
	return StaticAccessPoint{ssid: ssid, gw: gw}
}

// SSID reports the access point's network name.
func (a StaticAccessPoint) SSID() string { return a.ssid }

// GatewayIP reports the access point's gateway address.
func (a StaticAccessPoint) GatewayIP() net.IP { return a.gw }

// minimal DHCP/BOOTP and DNS header offsets this package needs to parse
// just enough of an inbound request to build a same-transaction reply.
const (
	dhcpOpReply       = 2
	dhcpHTypeEthernet = 1
	dhcpMagicCookie   = 0x63825363

	dhcpOptLeaseTime  = 51
	dhcpOptMsgType    = 53
	dhcpOptServerID   = 54
	dhcpOptSubnetMask = 1
	dhcpOptRouter     = 3
	dhcpOptDNS        = 6
	dhcpOptEnd        = 255

	dhcpMsgTypeOffer = 2
	dhcpMsgTypeAck   = 5
)

// DHCPServer answers every DHCPDISCOVER/DHCPREQUEST it receives on UDP/67
// with an offer/ack leasing the requesting client a fixed address on the
// AP subnet and naming the kiosk as router and DNS server, per spec.md
// §6 ("DHCP answers every request with the gateway IP").
type DHCPServer struct {
	ap     AccessPoint
	conn   *net.UDPConn
	nextIP byte // last octet of the address offered to every client (fixed)
}

// NewDHCPServer binds the DHCP responder to UDP/67 on all interfaces.
func NewDHCPServer(ap AccessPoint) (*DHCPServer, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 67})
	if err != nil {
		return nil, fmt.Errorf("captive: dhcp listen: %w", err)
	}
	return &DHCPServer{ap: ap, conn: conn, nextIP: 10}, nil
}

// Close shuts the listener down.
func (d *DHCPServer) Close() error { return d.conn.Close() }

// Serve processes inbound DHCP packets until the listener is closed.
func (d *DHCPServer) Serve() error {
	buf := make([]byte, 1500)
	for {
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		reply, ok := d.buildReply(buf[:n])
		if !ok {
			continue
		}
		if _, err := d.conn.WriteToUDP(reply, &net.UDPAddr{IP: net.IPv4bcast, Port: addr.Port}); err != nil {
			log.Printf("captive: dhcp reply to %s: %v", addr, err)
		}
	}
}

// buildReply turns a minimal BOOTP/DHCP request into a reply offering the
// gateway's subnet, always leasing the same fixed address: there is only
// ever one client the kiosk cares about serving at a time.
func (d *DHCPServer) buildReply(req []byte) ([]byte, bool) {
	if len(req) < 240 {
		return nil, false
	}
	xid := req[4:8]
	chaddr := req[28:44]

	gw := d.ap.GatewayIP().To4()
	if gw == nil {
		return nil, false
	}
	offered := net.IPv4(gw[0], gw[1], gw[2], d.nextIP)

	msgType := byte(dhcpMsgTypeOffer)
	if requestedMsgType(req) == 3 { // DHCPREQUEST
		msgType = dhcpMsgTypeAck
	}

	reply := make([]byte, 240)
	reply[0] = dhcpOpReply
	reply[1] = dhcpHTypeEthernet
	reply[2] = 6
	copy(reply[4:8], xid)
	copy(reply[16:20], offered.To4())
	copy(reply[20:24], gw)
	copy(reply[28:44], chaddr)
	reply[236] = byte(dhcpMagicCookie >> 24 & 0xff)
	reply[237] = byte(dhcpMagicCookie >> 16 & 0xff)
	reply[238] = byte(dhcpMagicCookie >> 8 & 0xff)
	reply[239] = byte(dhcpMagicCookie & 0xff)

	reply = appendOpt(reply, dhcpOptMsgType, []byte{msgType})
	reply = appendOpt(reply, dhcpOptServerID, gw)
	reply = appendOpt(reply, dhcpOptLeaseTime, []byte{0, 0, 0x0e, 0x10}) // 3600s
	reply = appendOpt(reply, dhcpOptSubnetMask, []byte{255, 255, 255, 0})
	reply = appendOpt(reply, dhcpOptRouter, gw)
	reply = appendOpt(reply, dhcpOptDNS, gw)
	reply = append(reply, dhcpOptEnd)
	return reply, true
}

func requestedMsgType(req []byte) byte {
	i := 240
	for i+1 < len(req) {
		opt, l := req[i], int(req[i+1])
		if opt == dhcpOptEnd {
			break
		}
		if opt == dhcpOptMsgType && i+2 < len(req) {
			return req[i+2]
		}
		i += 2 + l
	}
	return 0
}

func appendOpt(b []byte, opt byte, val []byte) []byte {
	b = append(b, opt, byte(len(val)))
	return append(b, val...)
}

// DNSServer answers every query on UDP/53 with an A record pointing at the
// gateway IP, per spec.md §6 — the captive-portal resolution trick that
// makes any hostname a phone's browser tries resolve to the kiosk.
type DNSServer struct {
	ap   AccessPoint
	conn *net.UDPConn
}

// NewDNSServer binds the DNS responder to UDP/53 on all interfaces.
func NewDNSServer(ap AccessPoint) (*DNSServer, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 53})
	if err != nil {
		return nil, fmt.Errorf("captive: dns listen: %w", err)
	}
	return &DNSServer{ap: ap, conn: conn}, nil
}

// Close shuts the listener down.
func (d *DNSServer) Close() error { return d.conn.Close() }

// Serve processes inbound DNS queries until the listener is closed.
func (d *DNSServer) Serve() error {
	buf := make([]byte, 512)
	for {
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		reply, ok := buildDNSReply(buf[:n], d.ap.GatewayIP())
		if !ok {
			continue
		}
		if _, err := d.conn.WriteToUDP(reply, addr); err != nil {
			log.Printf("captive: dns reply to %s: %v", addr, err)
		}
	}
}

// buildDNSReply answers any single-question A query with the gateway IP,
// echoing the question section back unmodified as RFC 1035 requires.
func buildDNSReply(query []byte, gw net.IP) ([]byte, bool) {
	if len(query) < 12 {
		return nil, false
	}
	gw4 := gw.To4()
	if gw4 == nil {
		return nil, false
	}

	qEnd := questionEnd(query)
	if qEnd < 0 {
		return nil, false
	}

	reply := make([]byte, qEnd, qEnd+16)
	copy(reply, query[:qEnd])
	reply[2] = 0x81 // QR=1, opcode=0, flags set response
	reply[3] = 0x80
	reply[6], reply[7] = 0, 1 // ANCOUNT=1

	reply = append(reply,
		0xc0, 0x0c, // name pointer to offset 12 (the question's name)
		0x00, 0x01, // TYPE A
		0x00, 0x01, // CLASS IN
		0x00, 0x00, 0x00, 0x3c, // TTL 60s
		0x00, 0x04, // RDLENGTH 4
	)
	return append(reply, gw4...), true
}

// questionEnd returns the byte offset just past the single question
// section starting at offset 12, or -1 if the packet is malformed.
func questionEnd(query []byte) int {
	i := 12
	for i < len(query) {
		l := int(query[i])
		if l == 0 {
			i++
			break
		}
		i += 1 + l
		if i >= len(query) {
			return -1
		}
	}
	i += 4 // QTYPE + QCLASS
	if i > len(query) {
		return -1
	}
	return i
}
