package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/himanishpuri/PulseRate/internal/stream"
	"github.com/himanishpuri/PulseRate/pkg/logger"
	"github.com/himanishpuri/PulseRate/pkg/pulserate"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/recording"
)

const (
	waveWidth    = 60
	historyWidth = 30
	feedInterval = 100 * time.Millisecond
)

var sparkLevels = []rune(" ▁▂▃▄▅▆▇█")

type tickMsg time.Time

// rateMsg is one estimate attempt. ok is false when the window held too
// little signal.
type rateMsg struct {
	bpm   float64
	peaks int
	ok    bool
}

type waveMsg []float64

type errMsg struct{ err error }

// watchModel is the bubbletea model for the live heart rate view
type watchModel struct {
	source    string
	startTime time.Time
	last      rateMsg
	seen      bool
	misses    int
	history   []float64
	wave      []float64
	err       error
	quitting  bool
}

func (m watchModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case rateMsg:
		m.seen = true
		m.last = msg
		if !msg.ok {
			m.misses++
			return m, nil
		}
		m.history = append(m.history, msg.bpm)
		if len(m.history) > historyWidth {
			m.history = m.history[len(m.history)-historyWidth:]
		}

	case waveMsg:
		m.wave = msg

	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return "Stopping...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	bpmStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("PulseRate Monitor"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Source: "))
	b.WriteString(valueStyle.Render(m.source))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Heart rate: "))
	switch {
	case !m.seen:
		b.WriteString(valueStyle.Render("waiting for signal..."))
	case !m.last.ok:
		b.WriteString(valueStyle.Render("Recalculating..."))
	default:
		b.WriteString(bpmStyle.Render(fmt.Sprintf("%.1f BPM", m.last.bpm)))
		b.WriteString(valueStyle.Render(fmt.Sprintf("  (%d peaks)", m.last.peaks)))
	}
	b.WriteString("\n")

	if m.misses > 0 {
		b.WriteString(valueStyle.Render(fmt.Sprintf("Windows without estimate: %d", m.misses)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.wave) > 0 {
		b.WriteString(headerStyle.Render("Signal"))
		b.WriteString("\n")
		b.WriteString(valueStyle.Render(sparkline(m.wave, waveWidth)))
		b.WriteString("\n\n")
	}

	if len(m.history) > 0 {
		b.WriteString(headerStyle.Render("Trend"))
		b.WriteString("\n")
		b.WriteString(valueStyle.Render(sparkline(m.history, historyWidth)))
		b.WriteString("\n\n")
	}

	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))
	return b.String()
}

// sparkline renders the last width values scaled between their min and max.
func sparkline(values []float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	if len(values) == 0 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make([]rune, len(values))
	top := len(sparkLevels) - 1
	for i, v := range values {
		level := top / 2
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(top))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

func handleWatch(args []string) {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("watch", flag.ExitOnError)
	bpm := cmd.Float64("bpm", 72, "Simulated heart rate")
	noise := cmd.Float64("noise", 0.02, "Noise as a fraction of pulse amplitude")
	natsURL := cmd.String("nats", "", "Watch rate messages from this NATS server instead of simulating")
	addServiceFlags(cmd)
	cmd.Parse(args)

	// Log lines would tear the alt screen
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := watchModel{startTime: time.Now()}
	var feed func(*tea.Program)

	if *natsURL != "" {
		m.source = fmt.Sprintf("NATS %s (%s)", *natsURL, settings.NATS.RateSubject)
		feed = func(p *tea.Program) { watchNATS(ctx, p, *natsURL) }
	} else {
		svc := mustService()
		defer svc.Close()
		m.source = fmt.Sprintf("simulated %.0f BPM at %d Hz", *bpm, settings.Monitor.SampleRate)
		feed = func(p *tea.Program) { watchSimulated(ctx, p, svc, *bpm, *noise) }
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	go feed(p)

	final, err := p.Run()
	if err != nil {
		fmt.Printf("❌ TUI failed: %v\n", err)
		os.Exit(1)
	}
	if fm, ok := final.(watchModel); ok && fm.err != nil {
		fmt.Printf("❌ %v\n", fm.err)
		os.Exit(1)
	}
}

// watchSimulated feeds synthetic samples into a live session in real time
// and estimates every compute interval.
func watchSimulated(ctx context.Context, p *tea.Program, svc pulserate.Service, bpm, noise float64) {
	session, err := svc.StartSession(fmt.Sprintf("watch %.0f BPM", bpm), "simulated")
	if err != nil {
		p.Send(errMsg{err})
		return
	}
	defer svc.EndSession(session.ID)

	rate := settings.Monitor.SampleRate
	synth := recording.NewSynth(rate, bpm, noise)
	clock := ppg.NewClock()
	perTick := max(1, int(float64(rate)*feedInterval.Seconds()))
	wave := make([]float64, 0, waveWidth*2)

	feedTicker := time.NewTicker(feedInterval)
	defer feedTicker.Stop()
	computeTicker := time.NewTicker(settings.Monitor.ComputeInterval)
	defer computeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-feedTicker.C:
			// Spread the batch timestamps back over the tick the samples
			// belong to.
			now := clock.Now()
			step := uint32(1000 / rate)
			for i := 0; i < perTick; i++ {
				v := synth.Next()
				ts := now - ppg.Ticks(uint32(perTick-1-i)*step)
				if err := svc.AppendSample(session.ID, v, ts); err != nil {
					p.Send(errMsg{err})
					return
				}
				wave = append(wave, v)
			}
			if len(wave) > waveWidth {
				wave = append(wave[:0], wave[len(wave)-waveWidth:]...)
			}
			p.Send(waveMsg(append([]float64(nil), wave...)))

		case <-computeTicker.C:
			reading, err := svc.EstimateHeartRate(session.ID)
			if err != nil {
				p.Send(errMsg{err})
				return
			}
			if reading == nil {
				p.Send(rateMsg{})
				continue
			}
			p.Send(rateMsg{bpm: reading.BPM, peaks: reading.PeakCount, ok: true})
		}
	}
}

// watchNATS relays RateMessages published by cmd/processor.
func watchNATS(ctx context.Context, p *tea.Program, url string) {
	nc, err := stream.Connect(url, "pulserate-watch")
	if err != nil {
		p.Send(errMsg{fmt.Errorf("connecting to NATS: %w", err)})
		return
	}
	defer nc.Drain()

	_, err = stream.SubscribeRates(nc, settings.NATS.RateSubject, func(m stream.RateMessage) {
		p.Send(rateMsg{bpm: m.BPM, peaks: m.PeakCount, ok: m.OK})
	}, nil)
	if err != nil {
		p.Send(errMsg{err})
		return
	}

	<-ctx.Done()
}
