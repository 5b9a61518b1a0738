// Package stream carries PPG sample batches and heart rate readings over
// NATS.
package stream

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nats-io/nats.go"
)

var ErrShortBatch = errors.New("sample batch length is not a multiple of 4")

func Connect(url, name string) (*nats.Conn, error) {
	if name == "" {
		name = "pulserate"
	}
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// EncodeSamples packs samples as little-endian float32 values.
func EncodeSamples(samples []float64) []byte {
	out := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	return out
}

func DecodeSamples(data []byte) ([]float64, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortBatch, len(data))
	}
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return out, nil
}

// RateMessage is published for every estimate. BPM is zero and OK false when
// the window did not yield one.
type RateMessage struct {
	SessionID string  `json:"session_id"`
	Ts        int64   `json:"ts"`
	BPM       float64 `json:"bpm"`
	PeakCount int     `json:"peak_count"`
	OK        bool    `json:"ok"`
}

func (m RateMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func ParseRateMessage(data []byte) (RateMessage, error) {
	var m RateMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return RateMessage{}, fmt.Errorf("decoding rate message: %w", err)
	}
	return m, nil
}

// PublishSamples sends one encoded batch.
func PublishSamples(nc *nats.Conn, subject string, samples []float64) error {
	return nc.Publish(subject, EncodeSamples(samples))
}

func PublishRate(nc *nats.Conn, subject string, m RateMessage) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	return nc.Publish(subject, b)
}

// SubscribeSamples decodes each batch on subject and hands it to fn.
// Malformed batches go to onErr when it is not nil.
func SubscribeSamples(nc *nats.Conn, subject string, fn func([]float64), onErr func(error)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		samples, err := DecodeSamples(msg.Data)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(samples)
	})
}

// SubscribeRates decodes RateMessages published on subject.
func SubscribeRates(nc *nats.Conn, subject string, fn func(RateMessage), onErr func(error)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		m, err := ParseRateMessage(msg.Data)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(m)
	})
}
