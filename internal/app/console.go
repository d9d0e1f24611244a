package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/w200024212/pebbleos-sub017/internal/config"
	"github.com/w200024212/pebbleos-sub017/internal/kalg"
	"github.com/w200024212/pebbleos-sub017/internal/logger"
)

// RunConsole subscribes to the tracker topics and prints everything
// human-readable, one line per message.
func RunConsole() error {
	cfg := config.Get()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "tracker-console")
	if err != nil {
		return err
	}
	defer log.Sync()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	minuteToken := client.Subscribe(cfg.TopicMinute, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m kalg.MinuteSample
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Warn("minute unmarshal error", zap.Error(err))
			return
		}
		fmt.Printf("[MIN] utc=%d steps=%3d vmc=%5d hr=%3d active=%v plugged=%v\n",
			m.UTC, m.Steps, m.VMC, m.HeartRateBPM, m.Active, m.PluggedIn)
	})
	minuteToken.Wait()
	if minuteToken.Error() != nil {
		return minuteToken.Error()
	}
	log.Info("subscribed", zap.String("topic", cfg.TopicMinute))

	sessToken := client.Subscribe(cfg.TopicSessions, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var p sessionPayload
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Warn("session unmarshal error", zap.Error(err))
			return
		}
		fmt.Printf("[SES] %-9s %-13s start=%d len=%3dm steps=%d\n",
			p.Kind, p.Type, p.Session.StartUTC, p.Session.LengthM, p.Session.Steps)
	})
	sessToken.Wait()
	if sessToken.Error() != nil {
		return sessToken.Error()
	}
	log.Info("subscribed", zap.String("topic", cfg.TopicSessions))

	stepsToken := client.Subscribe(cfg.TopicSteps, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Printf("[STP] %s\n", msg.Payload())
	})
	stepsToken.Wait()
	if stepsToken.Error() != nil {
		return stepsToken.Error()
	}
	log.Info("subscribed", zap.String("topic", cfg.TopicSteps))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
