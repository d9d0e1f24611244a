package sensors

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/w200024212/pebbleos-sub017/internal/accel"
)

// ReplaySource reads recorded accelerometer samples from a CSV file and
// serves them in one-second batches, for driving the pipeline offline.
// Each row is "x,y,z" in milli-g at the pipeline sample rate; a header
// row is skipped if present.
type ReplaySource struct {
	f       *os.File
	r       *csv.Reader
	nowMS   uint64
	skipped bool
}

func NewReplaySource(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	r.ReuseRecord = true
	return &ReplaySource{f: f, r: r}, nil
}

// NextBatch returns the next second of samples. The final batch may be
// short; after that, io.EOF.
func (s *ReplaySource) NextBatch() (accel.Batch, error) {
	batch := accel.Batch{
		Samples:          make([]accel.Sample, 0, accel.SampleRateHz),
		FirstTimestampMS: s.nowMS,
	}
	for len(batch.Samples) < accel.SampleRateHz {
		row, err := s.r.Read()
		if err == io.EOF {
			if len(batch.Samples) == 0 {
				return accel.Batch{}, io.EOF
			}
			break
		}
		if err != nil {
			return accel.Batch{}, fmt.Errorf("replay: %w", err)
		}
		sample, err := parseRow(row)
		if err != nil {
			if !s.skipped {
				// tolerate one header row
				s.skipped = true
				continue
			}
			return accel.Batch{}, err
		}
		s.skipped = true
		batch.Samples = append(batch.Samples, sample)
	}
	s.nowMS += uint64(len(batch.Samples)) * 1000 / accel.SampleRateHz
	return batch, nil
}

func parseRow(row []string) (accel.Sample, error) {
	var vals [3]int16
	for i, field := range row {
		v, err := strconv.ParseInt(field, 10, 16)
		if err != nil {
			return accel.Sample{}, fmt.Errorf("replay: bad field %q: %w", field, err)
		}
		vals[i] = int16(v)
	}
	return accel.Sample{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func (s *ReplaySource) Close() error {
	return s.f.Close()
}

var _ accel.Source = (*ReplaySource)(nil)
