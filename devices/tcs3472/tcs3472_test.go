package tcs3472

import (
	"testing"

	"github.com/theralink/kiosk/internal/i2c/i2ctest"
)

func newTestDev(t *testing.T, id byte) (*Dev, *i2ctest.Record) {
	t.Helper()
	bus := &i2ctest.Record{}
	bus.QueueReply(cmdBit|regID, []byte{id})
	d, err := NewI2C(bus, 0x29)
	if err != nil {
		t.Fatalf("NewI2C: %v", err)
	}
	return d, bus
}

func TestNewI2CValidatesID(t *testing.T) {
	valid := &i2ctest.Record{}
	valid.QueueReply(cmdBit|regID, []byte{0x44})
	if _, err := NewI2C(valid, 0x29); err != nil {
		t.Errorf("unexpected error for valid id: %v", err)
	}
	bus := &i2ctest.Record{}
	bus.QueueReply(cmdBit|regID, []byte{0x01})
	if _, err := NewI2C(bus, 0x29); err == nil {
		t.Error("expected error for unrecognized id")
	}
}

func TestReadNormalized(t *testing.T) {
	d, bus := newTestDev(t, 0x44)
	// clear=400, red=220, green=120, blue=60, little-endian 16 bit each.
	bus.QueueReply(cmdBit|cmdAutoInc|regCData, []byte{0x90, 0x01, 0xDC, 0x00, 0x78, 0x00, 0x3C, 0x00})
	r, g, b, cNorm, err := d.ReadNormalized()
	if err != nil {
		t.Fatalf("ReadNormalized: %v", err)
	}
	wantCNorm := 400.0 / fullScaleClear
	if cNorm != wantCNorm {
		t.Errorf("cNorm = %v, want %v", cNorm, wantCNorm)
	}
	wantR, wantG, wantB := 220.0/400, 120.0/400, 60.0/400
	if r != wantR || g != wantG || b != wantB {
		t.Errorf("got (%v,%v,%v), want (%v,%v,%v)", r, g, b, wantR, wantG, wantB)
	}
}
