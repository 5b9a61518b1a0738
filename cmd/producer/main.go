package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/himanishpuri/PulseRate/internal/config"
	"github.com/himanishpuri/PulseRate/internal/stream"
	"github.com/himanishpuri/PulseRate/pkg/logger"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/recording"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("PULSE_CONFIG"), "Path to a YAML config file")
		natsURL    = flag.String("nats", "", "NATS url (overrides config)")
		subject    = flag.String("subject", "", "Sample subject (overrides config)")
		bpm        = flag.Float64("bpm", 72, "Simulated heart rate")
		noise      = flag.Float64("noise", 0.02, "Noise as a fraction of pulse amplitude")
		batch      = flag.Int("batch", 10, "Samples per message")
	)
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *natsURL != "" {
		cfg.NATS.URL = *natsURL
	}
	if *subject != "" {
		cfg.NATS.SamplesSubject = *subject
	}
	if *batch < 1 {
		log.Fatalf("batch must be positive, got %d", *batch)
	}

	nc, err := stream.Connect(cfg.NATS.URL, "pulserate-producer")
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Drain()

	rate := cfg.Monitor.SampleRate
	synth := recording.NewSynth(rate, *bpm, *noise)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	log.Infof("Producing %.0f BPM at %d Hz on %s", *bpm, rate, cfg.NATS.SamplesSubject)

	buffer := make([]float64, 0, *batch)
	var sent int
	for {
		select {
		case <-ctx.Done():
			log.Infof("Producer stopping after %d batches", sent)
			return

		case <-ticker.C:
			buffer = append(buffer, synth.Next())
			if len(buffer) < *batch {
				continue
			}
			if err := stream.PublishSamples(nc, cfg.NATS.SamplesSubject, buffer); err != nil {
				log.Errorf("Publish failed: %v", err)
			} else {
				sent++
			}
			buffer = buffer[:0]
		}
	}
}
