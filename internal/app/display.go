package app

import (
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/w200024212/pebbleos-sub017/internal/config"
	"github.com/w200024212/pebbleos-sub017/internal/kalg"
	"github.com/w200024212/pebbleos-sub017/internal/logger"
)

// displayData holds the latest tracker outputs for rendering.
type displayData struct {
	mu          sync.RWMutex
	minute      kalg.MinuteSample
	haveMinute  bool
	daySteps    uint64
	lastSession sessionPayload
	haveSession bool
}

// RunDisplay shows live step and session state on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "tracker-display")
	if err != nil {
		return err
	}
	defer log.Sync()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Info("display initialized", zap.String("i2c_bus", bus.String()))

	data := &displayData{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay).
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
		data.mu.Lock()
		data.minute = m
		data.haveMinute = true
		data.daySteps += uint64(m.Steps)
		data.mu.Unlock()
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
		data.mu.Lock()
		data.lastSession = p
		data.haveSession = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()
	log.Info("starting display update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := displayData{
			minute:      data.minute,
			haveMinute:  data.haveMinute,
			daySteps:    data.daySteps,
			lastSession: data.lastSession,
			haveSession: data.haveSession,
		}
		data.mu.RUnlock()

		if err := drawTrackerScreen(dev, &snapshot); err != nil {
			log.Warn("display update error", zap.Error(err))
		}
	}
	return nil
}

func drawTrackerScreen(dev *ssd1306.Dev, d *displayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !d.haveMinute {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Tracker"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("Steps %6d", d.daySteps)))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("VMC %5d HR %3d", d.minute.VMC, d.minute.HeartRateBPM)))

	state := "idle"
	switch {
	case d.minute.PluggedIn:
		state = "charging"
	case d.minute.Active:
		state = "active"
	}
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(state))

	if d.haveSession {
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("%s %s %dm",
			d.lastSession.Type, d.lastSession.Kind, d.lastSession.Session.LengthM)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
