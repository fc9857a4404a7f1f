package captive

import (
	"net"
	"testing"
)

func TestStaticAccessPoint(t *testing.T) {
	gw := net.IPv4(192, 168, 4, 1)
	ap := NewStaticAccessPoint("theralink", gw)
	if ap.SSID() != "theralink" {
		t.Errorf("SSID = %q, want theralink", ap.SSID())
	}
	if !ap.GatewayIP().Equal(gw) {
		t.Errorf("GatewayIP = %v, want %v", ap.GatewayIP(), gw)
	}
}

func dhcpDiscover(xid []byte, mac []byte) []byte {
	req := make([]byte, 244)
	req[0] = 1 // BOOTREQUEST
	req[1] = dhcpHTypeEthernet
	req[2] = 6
	copy(req[4:8], xid)
	copy(req[28:44], mac)
	req[236], req[237], req[238], req[239] = 0x63, 0x82, 0x53, 0x63
	req[240], req[241], req[242] = dhcpOptMsgType, 1, 1 // DHCPDISCOVER
	req[243] = dhcpOptEnd
	return req
}

func TestDHCPBuildReplyOffersGatewaySubnet(t *testing.T) {
	gw := net.IPv4(192, 168, 4, 1)
	d := &DHCPServer{ap: NewStaticAccessPoint("theralink", gw), nextIP: 10}
	xid := []byte{1, 2, 3, 4}
	mac := make([]byte, 16)
	mac[0], mac[1] = 0xde, 0xad

	reply, ok := d.buildReply(dhcpDiscover(xid, mac))
	if !ok {
		t.Fatal("buildReply returned ok=false")
	}
	if reply[0] != dhcpOpReply {
		t.Errorf("op = %d, want %d", reply[0], dhcpOpReply)
	}
	if string(reply[4:8]) != string(xid) {
		t.Error("xid not echoed back")
	}
	offeredIP := net.IP(reply[16:20])
	if !offeredIP.Equal(net.IPv4(192, 168, 4, 10)) {
		t.Errorf("offered IP = %v, want 192.168.4.10", offeredIP)
	}
	gwInReply := net.IP(reply[20:24])
	if !gwInReply.Equal(gw) {
		t.Errorf("siaddr field = %v, want gateway %v", gwInReply, gw)
	}
}

func TestDHCPRejectsShortPacket(t *testing.T) {
	d := &DHCPServer{ap: NewStaticAccessPoint("theralink", net.IPv4(192, 168, 4, 1))}
	if _, ok := d.buildReply([]byte{1, 2, 3}); ok {
		t.Error("expected ok=false for a too-short packet")
	}
}

func dnsQuery(id uint16, name string) []byte {
	q := make([]byte, 12)
	q[0], q[1] = byte(id>>8), byte(id)
	q[5] = 1 // QDCOUNT=1
	for _, label := range splitDNSName(name) {
		q = append(q, byte(len(label)))
		q = append(q, label...)
	}
	q = append(q, 0, 0, 1, 0, 1) // root, QTYPE A, QCLASS IN
	return q
}

func splitDNSName(name string) []string {
	var labels []string
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' {
			labels = append(labels, name[start:i])
			start = i + 1
		}
	}
	return labels
}

func TestDNSReplyAnswersWithGatewayIP(t *testing.T) {
	gw := net.IPv4(192, 168, 4, 1)
	query := dnsQuery(0xabcd, "connectivitycheck.gstatic.com")

	reply, ok := buildDNSReply(query, gw)
	if !ok {
		t.Fatal("buildDNSReply returned ok=false")
	}
	if reply[0] != 0xab || reply[1] != 0xcd {
		t.Error("query ID not echoed back")
	}
	if reply[2]&0x80 == 0 {
		t.Error("QR bit not set in response flags")
	}
	answerIP := net.IP(reply[len(reply)-4:])
	if !answerIP.Equal(gw) {
		t.Errorf("answer IP = %v, want %v", answerIP, gw)
	}
}

func TestDNSReplyRejectsMalformed(t *testing.T) {
	if _, ok := buildDNSReply([]byte{1, 2}, net.IPv4(192, 168, 4, 1)); ok {
		t.Error("expected ok=false for a too-short packet")
	}
}
