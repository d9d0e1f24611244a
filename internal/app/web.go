package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/w200024212/pebbleos-sub017/internal/config"
	"github.com/w200024212/pebbleos-sub017/internal/kalg"
	"github.com/w200024212/pebbleos-sub017/internal/logger"
)

const recentSessionsKept = 50

// webState caches the latest tracker outputs for the HTTP handlers and
// fans session events out to websocket subscribers.
type webState struct {
	mu         sync.RWMutex
	lastMinute kalg.MinuteSample
	haveMinute bool
	sessions   []sessionPayload

	subMu sync.Mutex
	subs  map[*websocket.Conn]chan []byte
}

func newWebState() *webState {
	return &webState{subs: make(map[*websocket.Conn]chan []byte)}
}

func (s *webState) setMinute(m kalg.MinuteSample) {
	s.mu.Lock()
	s.lastMinute = m
	s.haveMinute = true
	s.mu.Unlock()
}

func (s *webState) addSession(p sessionPayload, raw []byte) {
	s.mu.Lock()
	s.sessions = append(s.sessions, p)
	if len(s.sessions) > recentSessionsKept {
		s.sessions = s.sessions[len(s.sessions)-recentSessionsKept:]
	}
	s.mu.Unlock()

	s.subMu.Lock()
	for conn, ch := range s.subs {
		select {
		case ch <- raw:
		default:
			// slow subscriber, drop it
			close(ch)
			delete(s.subs, conn)
		}
	}
	s.subMu.Unlock()
}

func (s *webState) subscribe(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 16)
	s.subMu.Lock()
	s.subs[conn] = ch
	s.subMu.Unlock()
	return ch
}

func (s *webState) unsubscribe(conn *websocket.Conn) {
	s.subMu.Lock()
	if _, ok := s.subs[conn]; ok {
		delete(s.subs, conn)
	}
	s.subMu.Unlock()
}

// RunWeb serves the latest minute snapshot, recent sessions, and a live
// session event feed over a websocket.
func RunWeb() error {
	cfg := config.Get()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "tracker-web")
	if err != nil {
		return err
	}
	defer log.Sync()

	state := newWebState()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	token := client.Subscribe(cfg.TopicMinute, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m kalg.MinuteSample
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Warn("minute unmarshal error", zap.Error(err))
			return
		}
		state.setMinute(m)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(cfg.TopicSessions, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var p sessionPayload
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Warn("session unmarshal error", zap.Error(err))
			return
		}
		raw := make([]byte, len(msg.Payload()))
		copy(raw, msg.Payload())
		state.addSession(p, raw)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/minute", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()
		if !state.haveMinute {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.lastMinute); err != nil {
			log.Warn("json encode error", zap.Error(err))
		}
	})

	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		sessions := make([]sessionPayload, len(state.sessions))
		copy(sessions, state.sessions)
		state.mu.RUnlock()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sessions); err != nil {
			log.Warn("json encode error", zap.Error(err))
		}
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	mux.HandleFunc("/ws/sessions", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		ch := state.subscribe(conn)
		defer func() {
			state.unsubscribe(conn)
			conn.Close()
		}()
		for raw := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	})

	mux.Handle("/", http.FileServer(http.Dir("web")))

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Info("web server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}
