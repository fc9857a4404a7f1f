// Package tcs3472 drives the TCS34725-family RGB+clear light sensor used
// to validate the wristband color.
//
// Register map and bring-up sequence are adapted from the original
// firmware's cor.c, translated into the periph register-device idiom.
package tcs3472

import (
	"encoding/binary"
	"fmt"

	"github.com/theralink/kiosk/internal/i2c"
)

const (
	cmdBit     = 0x80
	cmdAutoInc = 0x20

	regEnable  = 0x00
	regATime   = 0x01
	regControl = 0x0F
	regID      = 0x12
	regCData   = 0x14 // clear, red, green, blue, 16 bit LE each

	enablePON = 0x01
	enableAEN = 0x02

	gain16x = 0x02

	// fullScaleClear is the maximum clear-channel count at ATIME=0xD5
	// (43 integration cycles, ~103ms) per the datasheet's
	// (256-ATIME)*1024 saturation formula. ReadNormalized divides by
	// this so c_norm lands in the spec's normalized 0..1 convention
	// rather than raw ADC counts.
	fullScaleClear = 43 * 1024
)

// Dev is a handle to an initialized color sensor.
type Dev struct {
	d i2c.Dev
}

// NewI2C probes the device at addr on bus, validates its ID register and
// brings it up with a ~100 ms integration time and 16x gain.
func NewI2C(bus i2c.Bus, addr uint16) (*Dev, error) {
	d := &Dev{d: i2c.Dev{Bus: bus, Addr: addr}}
	id, err := d.readReg8(regID)
	if err != nil {
		return nil, d.wrap(fmt.Errorf("probing id: %w", err))
	}
	if id != 0x44 && id != 0x4D {
		return nil, d.wrap(fmt.Errorf("unrecognized id %#x", id))
	}
	if err := d.writeReg8(regATime, 0xD5); err != nil { // ~103ms integration
		return nil, d.wrap(err)
	}
	if err := d.writeReg8(regControl, gain16x); err != nil {
		return nil, d.wrap(err)
	}
	if err := d.writeReg8(regEnable, enablePON); err != nil {
		return nil, d.wrap(err)
	}
	if err := d.writeReg8(regEnable, enablePON|enableAEN); err != nil {
		return nil, d.wrap(err)
	}
	return d, nil
}

// Raw is a single clear/red/green/blue reading, in the sensor's native
// 16 bit units.
type Raw struct {
	Clear, Red, Green, Blue uint16
}

// ReadRaw reads one clear/red/green/blue sample.
func (d *Dev) ReadRaw() (Raw, error) {
	b, err := d.readAutoInc(regCData, 8)
	if err != nil {
		return Raw{}, d.wrap(err)
	}
	return Raw{
		Clear: binary.LittleEndian.Uint16(b[0:2]),
		Red:   binary.LittleEndian.Uint16(b[2:4]),
		Green: binary.LittleEndian.Uint16(b[4:6]),
		Blue:  binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// ReadNormalized reads one sample and normalizes red/green/blue by clear,
// and clear itself by the sensor's full-scale count, matching the
// classifier's expected (r,g,b,c_norm) input in the 0..1 convention.
func (d *Dev) ReadNormalized() (r, g, b, cNorm float64, err error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	c := float64(raw.Clear)
	if c < 1 {
		c = 1
	}
	return float64(raw.Red) / c, float64(raw.Green) / c, float64(raw.Blue) / c, c / fullScaleClear, nil
}

func (d *Dev) readReg8(reg uint8) (uint8, error) {
	return d.d.ReadReg8(cmdBit | reg)
}

func (d *Dev) writeReg8(reg, val uint8) error {
	return d.d.WriteReg8(cmdBit|reg, val)
}

func (d *Dev) readAutoInc(reg uint8, n int) ([]byte, error) {
	return d.d.ReadReg(cmdBit|cmdAutoInc|reg, n)
}

func (d *Dev) String() string {
	return fmt.Sprintf("tcs3472{%s}", &d.d)
}

func (d *Dev) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("tcs3472: %w", err)
}
