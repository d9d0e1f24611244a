// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/w200024212/pebbleos-sub017/internal/accel"
)

// MPU-9250 register addresses and values used by the step pipeline. The
// gyro and magnetometer stay powered down; only the accelerometer runs.
const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1a
	regAccelConfig = 0x1c
	regAccelCfg2   = 0x1d
	regAccelXOutH  = 0x3b
	regPwrMgmt1    = 0x6b
	regPwrMgmt2    = 0x6c
	regWhoAmI      = 0x75

	whoAmIMPU9250 = 0x71
	whoAmIMPU9255 = 0x73

	pwrReset    = 0x80
	pwrClockPLL = 0x01
	pwrGyroOff  = 0x07 // PWR_MGMT_2: disable all gyro axes

	accelRange4G = 1 << 3 // ACCEL_FS_SEL=1
	accelDLPF10  = 0x05   // A_DLPFCFG=5, 10Hz bandwidth
	readFlag     = 0x80
)

// accelSampleDiv yields the pipeline rate from the 1kHz internal rate.
const accelSampleDiv = 1000/accel.SampleRateHz - 1

// MPU9250Source polls an MPU-9250 class accelerometer over SPI and
// hands out one-second batches in milli-g.
type MPU9250Source struct {
	conn     spi.Conn
	port     spi.PortCloser
	log      *zap.Logger
	ticker   *time.Ticker
	batchLen int
}

// NewMPU9250Source opens the SPI device, verifies the chip identity and
// configures the accelerometer for continuous low-rate sampling.
func NewMPU9250Source(spiDev string, log *zap.Logger) (*MPU9250Source, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("accel: periph host init: %w", err)
	}
	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("accel: open SPI port %q: %w", spiDev, err)
	}
	conn, err := port.Connect(physic.MegaHertz, spi.Mode3, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("accel: SPI connect: %w", err)
	}
	s := &MPU9250Source{
		conn:     conn,
		port:     port,
		log:      log,
		batchLen: accel.SampleRateHz,
	}
	if err := s.initChip(); err != nil {
		port.Close()
		return nil, err
	}
	s.ticker = time.NewTicker(time.Second / accel.SampleRateHz)
	log.Info("accelerometer configured",
		zap.String("spi", spiDev), zap.Int("rate_hz", accel.SampleRateHz))
	return s, nil
}

func (s *MPU9250Source) initChip() error {
	id, err := s.readReg(regWhoAmI)
	if err != nil {
		return fmt.Errorf("accel: WHO_AM_I read: %w", err)
	}
	if id != whoAmIMPU9250 && id != whoAmIMPU9255 {
		return fmt.Errorf("accel: unexpected WHO_AM_I 0x%02x", id)
	}
	steps := []struct {
		reg, val byte
	}{
		{regPwrMgmt1, pwrReset},
		{regPwrMgmt1, pwrClockPLL},
		{regPwrMgmt2, pwrGyroOff},
		{regConfig, 0x00},
		{regSmplrtDiv, accelSampleDiv},
		{regAccelConfig, accelRange4G},
		{regAccelCfg2, accelDLPF10},
	}
	for i, st := range steps {
		if err := s.writeReg(st.reg, st.val); err != nil {
			return fmt.Errorf("accel: init write 0x%02x: %w", st.reg, err)
		}
		if i == 0 {
			time.Sleep(100 * time.Millisecond) // reset settle time
		}
	}
	return nil
}

func (s *MPU9250Source) readReg(reg byte) (byte, error) {
	w := []byte{reg | readFlag, 0}
	r := make([]byte, 2)
	if err := s.conn.Tx(w, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

func (s *MPU9250Source) writeReg(reg, val byte) error {
	return s.conn.Tx([]byte{reg, val}, make([]byte, 2))
}

// readSample burst-reads the six accelerometer output registers and
// converts to milli-g (8192 LSB/g at the ±4g range).
func (s *MPU9250Source) readSample() (accel.Sample, error) {
	w := make([]byte, 7)
	w[0] = regAccelXOutH | readFlag
	r := make([]byte, 7)
	if err := s.conn.Tx(w, r); err != nil {
		return accel.Sample{}, fmt.Errorf("accel: sample read: %w", err)
	}
	raw := func(hi, lo byte) int16 { return int16(uint16(hi)<<8 | uint16(lo)) }
	toMilliG := func(v int16) int16 { return int16(int32(v) * 1000 / 8192) }
	return accel.Sample{
		X: toMilliG(raw(r[1], r[2])),
		Y: toMilliG(raw(r[3], r[4])),
		Z: toMilliG(raw(r[5], r[6])),
	}, nil
}

// NextBatch blocks for one second of samples.
func (s *MPU9250Source) NextBatch() (accel.Batch, error) {
	batch := accel.Batch{
		Samples:          make([]accel.Sample, 0, s.batchLen),
		FirstTimestampMS: uint64(time.Now().UnixMilli()),
	}
	for range s.ticker.C {
		sample, err := s.readSample()
		if err != nil {
			return accel.Batch{}, err
		}
		batch.Samples = append(batch.Samples, sample)
		if len(batch.Samples) == s.batchLen {
			return batch, nil
		}
	}
	return accel.Batch{}, fmt.Errorf("accel: sample ticker stopped")
}

// Close stops sampling and releases the SPI port.
func (s *MPU9250Source) Close() error {
	s.ticker.Stop()
	return s.port.Close()
}

var _ accel.Source = (*MPU9250Source)(nil)
