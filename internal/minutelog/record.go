package minutelog

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/w200024212/pebbleos-sub017/internal/kalg"
)

// Two fixed-layout record formats batch per-minute samples behind a
// common header. The file format is what lands in the on-device minute
// store; the telemetry format is what crosses to the phone. Version
// bumps are additive only (new trailing sample fields); readers reject
// versions they do not know instead of guessing.

// ErrUnknownVersion is returned when decoding a record whose version the
// reader does not understand.
var ErrUnknownVersion = errors.New("minutelog: unknown record version")

const (
	FileRecordVersion      = 3
	TelemetryRecordVersion = 2

	// Batch sizes: minutes per record for each sink.
	FileBatchMinutes      = 15
	TelemetryBatchMinutes = 5

	headerSize          = 9
	fileSampleSize      = 6
	telemetrySampleSize = 12

	// TelemetryItemType identifies minute records on the transport.
	TelemetryItemType = 0x0054

	flagPluggedIn = 1 << 0
	flagActive    = 1 << 1
)

// Header is the layout shared by both formats.
type Header struct {
	Version        uint16
	UTC            uint32
	LocalOffset15M int8
	SampleSize     uint8
	Count          uint8
}

func putHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.Version)
	binary.LittleEndian.PutUint32(buf[2:6], h.UTC)
	buf[6] = byte(h.LocalOffset15M)
	buf[7] = h.SampleSize
	buf[8] = h.Count
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("minutelog: record too short (%d bytes)", len(buf))
	}
	return Header{
		Version:        binary.LittleEndian.Uint16(buf[0:2]),
		UTC:            binary.LittleEndian.Uint32(buf[2:6]),
		LocalOffset15M: int8(buf[6]),
		SampleSize:     buf[7],
		Count:          buf[8],
	}, nil
}

func sampleFlags(s kalg.MinuteSample) byte {
	var f byte
	if s.PluggedIn {
		f |= flagPluggedIn
	}
	if s.Active {
		f |= flagActive
	}
	return f
}

func clipU8(v uint32) byte {
	if v > 255 {
		return 255
	}
	return byte(v)
}

// EncodeFileRecord packs a batch into the file format. The header carries
// the UTC of the first minute; samples are minute-consecutive.
func EncodeFileRecord(batch []kalg.MinuteSample, localOffset15M int8) []byte {
	buf := make([]byte, headerSize+fileSampleSize*len(batch))
	putHeader(buf, Header{
		Version:        FileRecordVersion,
		UTC:            batch[0].UTC,
		LocalOffset15M: localOffset15M,
		SampleSize:     fileSampleSize,
		Count:          uint8(len(batch)),
	})
	for i, s := range batch {
		o := headerSize + i*fileSampleSize
		buf[o+0] = clipU8(uint32(s.Steps))
		buf[o+1] = s.Orientation
		binary.LittleEndian.PutUint16(buf[o+2:o+4], s.VMC)
		buf[o+4] = byte(s.LightLevel >> 4) // 12-bit reading to one byte
		buf[o+5] = sampleFlags(s)
	}
	return buf
}

// FileSample is one decoded minute from a file record.
type FileSample struct {
	UTC         uint32
	Steps       uint8
	Orientation uint8
	VMC         uint16
	Light       uint8
	PluggedIn   bool
	Active      bool
}

// DecodeFileRecord parses a file record, rejecting unknown versions. A
// larger sample size from a future additive bump is tolerated; the known
// prefix of each sample is read and trailing bytes are skipped.
func DecodeFileRecord(buf []byte) ([]FileSample, error) {
	h, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.Version != FileRecordVersion {
		return nil, fmt.Errorf("%w: file record v%d", ErrUnknownVersion, h.Version)
	}
	if int(h.SampleSize) < fileSampleSize {
		return nil, fmt.Errorf("minutelog: file sample size %d too small", h.SampleSize)
	}
	need := headerSize + int(h.SampleSize)*int(h.Count)
	if len(buf) < need {
		return nil, fmt.Errorf("minutelog: truncated file record (%d < %d bytes)", len(buf), need)
	}
	out := make([]FileSample, h.Count)
	for i := range out {
		o := headerSize + i*int(h.SampleSize)
		out[i] = FileSample{
			UTC:         h.UTC + uint32(i)*60,
			Steps:       buf[o+0],
			Orientation: buf[o+1],
			VMC:         binary.LittleEndian.Uint16(buf[o+2 : o+4]),
			Light:       buf[o+4],
			PluggedIn:   buf[o+5]&flagPluggedIn != 0,
			Active:      buf[o+5]&flagActive != 0,
		}
	}
	return out, nil
}

// EncodeTelemetryRecord packs a batch into the phone-bound format, a
// superset of the file sample fields plus heart rate, calories and
// distance.
func EncodeTelemetryRecord(batch []kalg.MinuteSample, localOffset15M int8) []byte {
	buf := make([]byte, headerSize+telemetrySampleSize*len(batch))
	putHeader(buf, Header{
		Version:        TelemetryRecordVersion,
		UTC:            batch[0].UTC,
		LocalOffset15M: localOffset15M,
		SampleSize:     telemetrySampleSize,
		Count:          uint8(len(batch)),
	})
	for i, s := range batch {
		o := headerSize + i*telemetrySampleSize
		buf[o+0] = clipU8(uint32(s.Steps))
		buf[o+1] = s.Orientation
		binary.LittleEndian.PutUint16(buf[o+2:o+4], s.VMC)
		buf[o+4] = sampleFlags(s)
		buf[o+5] = s.HeartRateBPM
		binary.LittleEndian.PutUint16(buf[o+6:o+8], s.ActiveCalories)
		binary.LittleEndian.PutUint16(buf[o+8:o+10], s.RestingCalories)
		cm := s.DistanceMM / 10
		if cm > 0xffff {
			cm = 0xffff
		}
		binary.LittleEndian.PutUint16(buf[o+10:o+12], uint16(cm))
	}
	return buf
}

// TelemetrySample is one decoded minute from a telemetry record.
type TelemetrySample struct {
	UTC             uint32
	Steps           uint8
	Orientation     uint8
	VMC             uint16
	PluggedIn       bool
	Active          bool
	HeartRateBPM    uint8
	ActiveCalories  uint16
	RestingCalories uint16
	DistanceCM      uint16
}

// DecodeTelemetryRecord parses a telemetry record, rejecting unknown
// versions.
func DecodeTelemetryRecord(buf []byte) ([]TelemetrySample, error) {
	h, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.Version != TelemetryRecordVersion {
		return nil, fmt.Errorf("%w: telemetry record v%d", ErrUnknownVersion, h.Version)
	}
	if int(h.SampleSize) < telemetrySampleSize {
		return nil, fmt.Errorf("minutelog: telemetry sample size %d too small", h.SampleSize)
	}
	need := headerSize + int(h.SampleSize)*int(h.Count)
	if len(buf) < need {
		return nil, fmt.Errorf("minutelog: truncated telemetry record (%d < %d bytes)", len(buf), need)
	}
	out := make([]TelemetrySample, h.Count)
	for i := range out {
		o := headerSize + i*int(h.SampleSize)
		out[i] = TelemetrySample{
			UTC:             h.UTC + uint32(i)*60,
			Steps:           buf[o+0],
			Orientation:     buf[o+1],
			VMC:             binary.LittleEndian.Uint16(buf[o+2 : o+4]),
			PluggedIn:       buf[o+4]&flagPluggedIn != 0,
			Active:          buf[o+4]&flagActive != 0,
			HeartRateBPM:    buf[o+5],
			ActiveCalories:  binary.LittleEndian.Uint16(buf[o+6 : o+8]),
			RestingCalories: binary.LittleEndian.Uint16(buf[o+8 : o+10]),
			DistanceCM:      binary.LittleEndian.Uint16(buf[o+10 : o+12]),
		}
	}
	return out, nil
}
