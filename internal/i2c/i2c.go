// Package i2c defines the narrow I²C bus abstraction that the kiosk's
// sensor drivers are built against.
//
// It exists so that devices/max3010x and devices/tcs3472 can be exercised
// against a fake bus (see i2ctest) without a real I²C controller, and so
// that bus 0 (shared between the PPG front end and the color sensor) has
// a single, explicit contract.
package i2c

import (
	"encoding/binary"
	"fmt"
)

// Bus is the interface a concrete I²C driver must implement.
//
// A device driver never talks to a bus directly; it addresses a Dev, which
// carries the device's fixed address.
type Bus interface {
	fmt.Stringer
	// Tx performs a write, and optionally a repeated-start read, against
	// the device at addr.
	Tx(addr uint16, w, r []byte) error
}

// BusCloser is a Bus that owns an underlying transport and can release it.
type BusCloser interface {
	Bus
	Close() error
}

// Dev is a device sitting at a fixed address on a Bus.
//
// It saves callers from repeating the address on every transaction.
type Dev struct {
	Bus  Bus
	Addr uint16
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s(%#x)", d.Bus, d.Addr)
}

// Tx performs a transaction against the device's fixed address.
func (d *Dev) Tx(w, r []byte) error {
	return d.Bus.Tx(d.Addr, w, r)
}

// ReadReg reads n bytes starting at register reg.
func (d *Dev) ReadReg(reg uint8, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.Tx([]byte{reg}, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadReg8 reads an 8 bit register.
func (d *Dev) ReadReg8(reg uint8) (uint8, error) {
	b, err := d.ReadReg(reg, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadReg16LE reads a 16 bit little-endian register.
func (d *Dev) ReadReg16LE(reg uint8) (uint16, error) {
	b, err := d.ReadReg(reg, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// WriteReg8 writes an 8 bit register.
func (d *Dev) WriteReg8(reg, val uint8) error {
	return d.Tx([]byte{reg, val}, nil)
}
