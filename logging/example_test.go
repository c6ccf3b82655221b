package logging_test

import (
	"github.com/grovetools/pulse/logging"
	"github.com/sirupsen/logrus"
)

func ExampleNewLogger() {
	log := logging.NewLogger("hub")

	log.Debug("Subscriber queue drained")
	log.Info("Subscriber attached")
	log.Warn("Subscriber dropped")

	log.WithFields(logrus.Fields{
		"version":     42,
		"subscribers": 3,
	}).Info("Snapshot published")

	// err := registry.Flush(ctx)
	// log.WithError(err).Error("Flush failed")
}

func ExampleConfigure() {
	// The logging section of pulse.yml:
	//
	// logging:
	//   level: debug
	//   report_caller: true
	//   file:
	//     enabled: true          # defaults to <state dir>/logs/<component>-<date>.log
	//     format: json
	//   format:
	//     preset: simple
	//
	// Environment variables win over the file:
	// PULSE_LOG_LEVEL=debug
	// PULSE_LOG_CALLER=true

	logging.Configure(logging.Config{Level: "debug"})
	logging.NewLogger("daemon").Info("This will respect the configuration")
}
