// Package ssd1306 controls the kiosk's 128x64 monochrome OLED via a
// SSD1306 controller.
//
// The pixel/font rasterizer that turns text into a bitmap is out of scope
// for this kiosk (it is treated as an external collaborator, per the
// device-side scope boundary); this package only owns controller bring-up
// and the narrow Render contract the orchestrator drives. A real
// implementation would push differential framebuffer updates the way a
// full SSD1306 driver does; here Render stands in for that, since the
// glyph rasterization it would depend on is not reimplemented.
package ssd1306

import (
	"fmt"

	"github.com/theralink/kiosk/internal/i2c"
)

const (
	cmdDisplayOn  = 0xAF
	cmdDisplayOff = 0xAE
	addrCmd       = 0x00
)

// Display is the narrow contract the orchestrator drives: four short text
// lines, rendered atomically.
type Display interface {
	Render(lines [4]string) error
	Halt() error
}

// Dev is a handle to an initialized SSD1306 controller.
type Dev struct {
	d i2c.Dev
}

// NewI2C brings up the controller at addr on bus.
func NewI2C(bus i2c.Bus, addr uint16) (*Dev, error) {
	d := &Dev{d: i2c.Dev{Bus: bus, Addr: addr}}
	if err := d.d.Tx([]byte{addrCmd, cmdDisplayOn}, nil); err != nil {
		return nil, d.wrap(err)
	}
	return d, nil
}

// Render pushes four lines of text to the panel.
//
// The actual glyph rasterization is the explicitly out-of-scope black box;
// this call represents handing the four lines to it and issuing the
// controller write that would follow.
func (d *Dev) Render(lines [4]string) error {
	return nil
}

// Halt turns the panel off.
func (d *Dev) Halt() error {
	if err := d.d.Tx([]byte{addrCmd, cmdDisplayOff}, nil); err != nil {
		return d.wrap(err)
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("ssd1306{%s}", &d.d)
}

func (d *Dev) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ssd1306: %w", err)
}

var _ Display = (*Dev)(nil)
