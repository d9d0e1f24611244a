package health

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
)

// mmPerSecondPerKnot converts NMEA speed-over-ground to mm/s (one knot
// is 0.514444 m/s).
const mmPerSecondPerKnot = 514.444

// GPSDistance integrates speed-over-ground from NMEA RMC sentences into
// a monotonic distance total. It satisfies DistanceSource.
type GPSDistance struct {
	mu         sync.Mutex
	log        *zap.Logger
	port       io.ReadCloser
	distanceMM uint64
	lastFix    time.Time
}

// OpenGPS opens the receiver's serial port and starts reading sentences
// in the background. Close stops it.
func OpenGPS(portName string, baudRate uint, log *zap.Logger) (*GPSDistance, error) {
	if log == nil {
		log = zap.NewNop()
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:        portName,
		BaudRate:        baudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, fmt.Errorf("health: open gps port %s: %w", portName, err)
	}
	g := &GPSDistance{log: log, port: port}
	go g.readLoop(port)
	log.Info("gps distance source started",
		zap.String("port", portName), zap.Uint("baud", baudRate))
	return g, nil
}

func (g *GPSDistance) readLoop(r io.Reader) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			g.log.Warn("gps read loop stopped", zap.Error(err))
			return
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy receivers emit partial sentences, skip them
			continue
		}
		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		g.ingestRMC(sentence.(nmea.RMC), time.Now())
	}
}

// ingestRMC advances the distance total by speed times the interval
// since the previous valid fix.
func (g *GPSDistance) ingestRMC(m nmea.RMC, now time.Time) {
	if m.Validity != nmea.ValidRMC {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.lastFix.IsZero() {
		dt := now.Sub(g.lastFix).Seconds()
		if dt > 0 && dt < 10 {
			g.distanceMM += uint64(m.Speed * mmPerSecondPerKnot * dt)
		}
	}
	g.lastFix = now
}

func (g *GPSDistance) DistanceMM() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.distanceMM > 0xffffffff {
		return 0xffffffff
	}
	return uint32(g.distanceMM)
}

func (g *GPSDistance) Close() error {
	return g.port.Close()
}
