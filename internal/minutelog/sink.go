package minutelog

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/w200024212/pebbleos-sub017/internal/kalg"
	"github.com/w200024212/pebbleos-sub017/internal/store"
	"github.com/w200024212/pebbleos-sub017/internal/telemetry"
)

// A sink drains batches of minute samples out of the buffer. write
// reports whether the batch was accepted; a rejected batch stays in the
// ring and is offered again on the next minute.
type sink interface {
	write(batch []kalg.MinuteSample, localOffset15M int8) bool
	batchMinutes() int
}

// fileSink writes file records into the key-value store, one record per
// quarter hour. When the store is full it compacts the oldest record
// away and retries once.
type fileSink struct {
	st  store.Store
	log *zap.Logger
}

func newFileSink(st store.Store, log *zap.Logger) *fileSink {
	return &fileSink{st: st, log: log}
}

func (s *fileSink) batchMinutes() int { return FileBatchMinutes }

func fileRecordKey(utc uint32) string {
	return fmt.Sprintf("am:%010d", utc/900)
}

func (s *fileSink) write(batch []kalg.MinuteSample, localOffset15M int8) bool {
	key := fileRecordKey(batch[0].UTC)
	data := EncodeFileRecord(batch, localOffset15M)
	err := s.st.Set(key, data)
	if errors.Is(err, store.ErrNoSpace) {
		if !s.compactOldest(key) {
			return false
		}
		err = s.st.Set(key, data)
	}
	if err != nil {
		s.log.Warn("minute record write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// compactOldest rewrites the store without its oldest minute record to
// make room for key. Keys sort chronologically, so the first one seen is
// the oldest.
func (s *fileSink) compactOldest(incoming string) bool {
	oldest := ""
	err := s.st.Each(func(key string, _ []byte) bool {
		if oldest == "" || key < oldest {
			oldest = key
		}
		return true
	})
	if err != nil || oldest == "" || oldest >= incoming {
		return false
	}
	err = s.st.RewriteFiltered(func(key string, _ []byte) bool { return key != oldest })
	if err != nil {
		s.log.Warn("minute store compaction failed", zap.Error(err))
		return false
	}
	s.log.Info("compacted minute store", zap.String("dropped", oldest))
	return true
}

// telemetrySink ships telemetry records over a transport session. The
// session is created lazily and recreated after the transport reports it
// closed.
type telemetrySink struct {
	tr      telemetry.Transport
	log     *zap.Logger
	session telemetry.Session
}

func newTelemetrySink(tr telemetry.Transport, log *zap.Logger) *telemetrySink {
	return &telemetrySink{tr: tr, log: log}
}

func (s *telemetrySink) batchMinutes() int { return TelemetryBatchMinutes }

func (s *telemetrySink) write(batch []kalg.MinuteSample, localOffset15M int8) bool {
	if s.session == nil {
		sess, err := s.tr.CreateSession("activity", TelemetryItemType, telemetrySampleSize)
		if err != nil {
			s.log.Warn("telemetry session unavailable", zap.Error(err))
			return false
		}
		s.session = sess
	}
	data := EncodeTelemetryRecord(batch, localOffset15M)
	switch st := s.session.Append(data, len(batch)); st {
	case telemetry.StatusOK:
		return true
	case telemetry.StatusClosed, telemetry.StatusNotFound:
		s.log.Info("telemetry session gone, will recreate", zap.Stringer("status", st))
		s.session = nil
		return false
	default:
		// Busy and Full both mean try again next minute.
		s.log.Debug("telemetry append deferred", zap.Stringer("status", st))
		return false
	}
}

func (s *telemetrySink) close() {
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
}
