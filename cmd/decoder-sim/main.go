// decoder-sim is a development stand-in for the hardware beacon
// decoder. It listens on TCP and streams K1/K2 beacon lines for a
// synthetic fleet, mixed with the same kind of noise a real decoder
// produces, so the agent can be exercised end to end without hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	listenAddr = flag.String("listen", "127.0.0.1:4001", "address to listen on")
	fleetSize  = flag.Int("fleet", 3, "number of simulated aircraft")
	interval   = flag.Duration("interval", 500*time.Millisecond, "base delay between beacons")
	noiseRate  = flag.Float64("noise", 0.1, "fraction of unrecognized noise lines")
	gapRate    = flag.Float64("gap", 0.02, "chance per beacon of a multi-second silence")
	seed       = flag.Int64("seed", 0, "random seed (0 = time-based)")
)

// aircraft is one simulated transponder: a fixed numeric label, a
// random-walk altitude, and slowly draining fuel.
type aircraft struct {
	label    string
	altitude int
	fuel     int
}

func newFleet(n int) []*aircraft {
	fleet := make([]*aircraft, n)
	for i := range fleet {
		fleet[i] = &aircraft{
			label:    fmt.Sprintf("%05d", gofakeit.Number(10000, 99999)),
			altitude: gofakeit.Number(800, 9000),
			fuel:     gofakeit.Number(55, 100),
		}
	}
	return fleet
}

// step advances the aircraft state by one beacon period.
func (a *aircraft) step() {
	a.altitude += gofakeit.Number(-80, 80)
	if a.altitude < 500 {
		a.altitude = 500
	}
	if a.altitude > 12000 {
		a.altitude = 12000
	}

	// Roughly one percent burned per twenty beacons; an empty tank
	// turns around and flies again.
	if gofakeit.Number(0, 19) == 0 {
		a.fuel--
	}
	if a.fuel < 5 {
		a.fuel = gofakeit.Number(85, 100)
	}
}

// beaconClock renders t in the decoder's HH:MM:SS.<ms>.<us> notation.
func beaconClock(t time.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d.%03d",
		t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond()/1e6, t.Nanosecond()/1e3%1000)
}

// identityLine renders a K1 beacon for the aircraft at time t. The
// bracketed and braced fields mimic the decoder's internal counters; the
// agent ignores them.
func identityLine(a *aircraft, t time.Time) string {
	return fmt.Sprintf("K1 %s [%5d] {%03d} **** :%s\n",
		beaconClock(t), gofakeit.Number(1000, 9999), gofakeit.Number(1, 999), a.label)
}

// measurementLine renders a K2 beacon for the aircraft at time t.
func measurementLine(a *aircraft, t time.Time) string {
	return fmt.Sprintf("K2 %s [%5d] {%03d} **** FL %dm [F%d]+  F:%d%%\n",
		beaconClock(t), gofakeit.Number(1000, 9999), gofakeit.Number(1, 999),
		a.altitude, gofakeit.Number(100, 999), a.fuel)
}

// noiseLine renders one of the untagged status lines real decoders
// emit between beacons.
func noiseLine() string {
	lines := []string{
		"decoder sync ok\n",
		fmt.Sprintf("# gain %d.%d dB\n", gofakeit.Number(10, 40), gofakeit.Number(0, 9)),
		fmt.Sprintf("buffer %d/4096\n", gofakeit.Number(0, 4096)),
		fmt.Sprintf("K9 %s unsupported channel\n", beaconClock(time.Now())),
	}
	return lines[gofakeit.Number(0, len(lines)-1)]
}

// chance draws from the shared faker so -seed reproduces a whole run.
func chance(p float64) bool {
	return gofakeit.Number(0, 999) < int(p*1000)
}

func main() {
	flag.Parse()

	if *seed != 0 {
		gofakeit.Seed(*seed)
	} else {
		gofakeit.Seed(time.Now().UnixNano())
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", *listenAddr, err)
	}
	defer ln.Close()

	log.Printf("Decoder simulator listening on %s", *listenAddr)
	log.Printf("  Fleet size: %d", *fleetSize)
	log.Printf("  Beacon interval: %v", *interval)
	log.Printf("  Noise rate: %.0f%%", *noiseRate*100)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatalf("Accept failed: %v", err)
		}
		log.Printf("Agent connected from %s", conn.RemoteAddr())
		go serve(conn)
	}
}

// serve streams beacons to one agent connection until the write fails.
// Each connection gets its own fleet, like restarting the hardware.
func serve(conn net.Conn) {
	defer conn.Close()

	fleet := newFleet(*fleetSize)
	for i, a := range fleet {
		log.Printf("  Aircraft %d: label %s, %dm, fuel %d%%", i+1, a.label, a.altitude, a.fuel)
	}

	sent := 0
	for turn := 0; ; turn++ {
		a := fleet[turn%len(fleet)]
		a.step()

		now := time.Now()
		lines := identityLine(a, now)

		// Most identity beacons are followed by a measurement a beat
		// later; sometimes the K2 arrives alone out of step, which is
		// what the agent's wider correlation window is for.
		if chance(0.8) {
			lines += measurementLine(a, now.Add(time.Duration(gofakeit.Number(0, 1500))*time.Millisecond))
		}
		if chance(*noiseRate) {
			lines += noiseLine()
		}

		if _, err := conn.Write([]byte(lines)); err != nil {
			log.Printf("Agent disconnected after %d beacons: %v", sent, err)
			return
		}
		sent++
		if sent%100 == 0 {
			log.Printf("Progress: %d beacons streamed", sent)
		}

		delay := *interval
		if chance(*gapRate) {
			// A burst gap: the decoder goes quiet the way it does when
			// the antenna loses the fleet for a few seconds.
			delay = time.Duration(gofakeit.Number(3, 8)) * time.Second
		}
		time.Sleep(delay)
	}
}
