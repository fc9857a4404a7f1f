// kiosk is the device-side entry point: it brings up the two I²C buses,
// probes the PPG and color sensors, starts the soft-AP network surface
// (DHCP, DNS, HTTP) and runs the session orchestrator's poll loop at the
// kiosk's ~10ms cadence until interrupted.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/theralink/kiosk/devices/max3010x"
	"github.com/theralink/kiosk/devices/ssd1306"
	"github.com/theralink/kiosk/devices/tcs3472"
	"github.com/theralink/kiosk/internal/captive"
	"github.com/theralink/kiosk/internal/colorclass"
	"github.com/theralink/kiosk/internal/display"
	"github.com/theralink/kiosk/internal/i2c/sysfsbus"
	"github.com/theralink/kiosk/internal/input"
	"github.com/theralink/kiosk/internal/ppg"
	"github.com/theralink/kiosk/internal/session"
	"github.com/theralink/kiosk/internal/store"
	"github.com/theralink/kiosk/internal/webap"
)

const (
	ssid         = "TheraLink"
	gatewayIP    = "192.168.4.1"
	httpAddr     = gatewayIP + ":80"
	pollPeriod   = 10 * time.Millisecond
	probeRetries = 3

	ppgAddr   = 0x57 // MAX30100/MAX30102
	colorAddr = 0x29 // TCS3472x
	oledAddr  = 0x3C // SSD1306
)

// mainImpl wires every component described in spec.md §4 together and
// runs the main poll loop. Bus and network bring-up failures are not
// fatal to the whole process: per spec.md §7 ("Fatal conditions"), the
// kiosk degrades to whatever subset of sensors/network it could bring up
// rather than refusing to start.
func mainImpl() error {
	bus0Num := flag.Int("bus0", 1, "I2C bus number shared by the PPG front end and the color sensor (spec.md §5: single-producer, never concurrent)")
	bus1Num := flag.Int("bus1", 0, "I2C bus number exclusive to the display")
	addr := flag.String("http", httpAddr, "address the captive web surface listens on")
	noNetwork := flag.Bool("no-network", false, "skip the soft-AP DHCP/DNS/HTTP bring-up (local UI only)")
	flag.Parse()

	mirror := display.New()
	st := store.New()
	web := webap.New(mirror, st)

	ppgSrc, thresholds := bringUpPPG(*bus0Num)
	colorSrc := bringUpColor(*bus0Num)
	oled := bringUpDisplay(*bus1Num)
	if oled != nil {
		defer oled.Halt()
	}

	if *noNetwork {
		log.Print("kiosk: network surface disabled by flag, local UI only")
	} else {
		startNetwork(*addr, web)
	}

	sess := session.New(
		ppg.New(thresholds), ppgSrc,
		colorclass.New(), colorSrc,
		st, web, mirror,
		input.NoButton{}, input.NoButton{}, input.NoJoystick{},
	)

	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()
	for now := range ticker.C {
		sess.Update(now)
		if oled != nil {
			if err := oled.Render(mirror.Lines()); err != nil {
				log.Printf("kiosk: display render: %v", err)
			}
		}
	}
	return nil
}

// bringUpPPG opens bus0 and probes the pulse-oximeter front end, retrying
// the probe up to probeRetries times per spec.md §7's SensorAbsent
// handling. A nil PPGSource tells the orchestrator the sensor could not
// be found; the session surfaces "sensor not found" and stays usable for
// everything else.
func bringUpPPG(busNum int) (session.PPGSource, ppg.Thresholds) {
	var dev *max3010x.Dev
	err := retry(probeRetries, func() error {
		bus, err := sysfsbus.Open(busNum)
		if err != nil {
			return err
		}
		d, err := max3010x.NewI2C(bus, ppgAddr)
		if err != nil {
			bus.Close()
			return err
		}
		dev = d
		return nil
	})
	if err != nil {
		if errors.Is(err, max3010x.ErrNotFound) {
			log.Printf("kiosk: no MAX3010x at %#x after %d attempts, continuing without PPG", ppgAddr, probeRetries)
		} else {
			log.Printf("kiosk: ppg sensor not found after %d attempts: %v", probeRetries, err)
		}
		return nil, ppg.Thresholds{}
	}
	th := dev.Thresholds()
	return dev, ppg.Thresholds{FingerOnMin: th.FingerOnMin, FingerOffMin: th.FingerOffMin}
}

// bringUpColor opens bus0 and probes the color sensor, sharing the bus
// with the PPG front end (spec.md §5: bus 0 is single-producer, but never
// concurrent since the orchestrator only ever drives one sensor at a
// time). A nil ColorSource means ColorLoop never validates a wristband;
// only button B leaves it.
func bringUpColor(busNum int) session.ColorSource {
	var dev *tcs3472.Dev
	err := retry(probeRetries, func() error {
		bus, err := sysfsbus.Open(busNum)
		if err != nil {
			return err
		}
		d, err := tcs3472.NewI2C(bus, colorAddr)
		if err != nil {
			bus.Close()
			return err
		}
		dev = d
		return nil
	})
	if err != nil {
		log.Printf("kiosk: color sensor not found after %d attempts: %v", probeRetries, err)
		return nil
	}
	return dev
}

// bringUpDisplay opens bus1 and initializes the OLED. Per spec.md §7,
// "OLED init failure continues headless via the web mirror" — a nil
// return is not an error condition the caller needs to retry.
func bringUpDisplay(busNum int) ssd1306.Display {
	bus, err := sysfsbus.Open(busNum)
	if err != nil {
		log.Printf("kiosk: display bus unavailable, continuing headless via web mirror: %v", err)
		return nil
	}
	dev, err := ssd1306.NewI2C(bus, oledAddr)
	if err != nil {
		bus.Close()
		log.Printf("kiosk: oled init failed, continuing headless via web mirror: %v", err)
		return nil
	}
	return dev
}

// startNetwork brings up the soft AP's DHCP, DNS and HTTP surfaces.
// Per spec.md §7, "Wi-Fi init failure aborts the web surface (kiosk
// continues with local UI only)" — none of these are fatal to the
// process as a whole.
func startNetwork(httpAddr string, web *webap.Server) {
	gw := net.ParseIP(gatewayIP)
	ap := captive.NewStaticAccessPoint(ssid, gw)

	if dhcp, err := captive.NewDHCPServer(ap); err != nil {
		log.Printf("kiosk: dhcp bring-up failed: %v", err)
	} else {
		go func() {
			if err := dhcp.Serve(); err != nil {
				log.Printf("kiosk: dhcp server stopped: %v", err)
			}
		}()
	}

	if dns, err := captive.NewDNSServer(ap); err != nil {
		log.Printf("kiosk: dns bring-up failed: %v", err)
	} else {
		go func() {
			if err := dns.Serve(); err != nil {
				log.Printf("kiosk: dns server stopped: %v", err)
			}
		}()
	}

	go func() {
		if err := web.ListenAndServe(httpAddr); err != nil {
			log.Printf("kiosk: http server stopped: %v", err)
		}
	}()
}

// retry calls fn up to n times, returning nil on the first success or the
// last error seen.
func retry(n int, fn func() error) error {
	var err error
	for i := 0; i < n; i++ {
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "kiosk: %s.\n", err)
		os.Exit(1)
	}
}
