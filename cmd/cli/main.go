package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/PulseRate/internal/config"
	"github.com/himanishpuri/PulseRate/pkg/logger"
	"github.com/himanishpuri/PulseRate/pkg/pulserate"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/recording"
	"github.com/himanishpuri/PulseRate/pkg/utils"
)

// settings resolved from PULSE_* env vars and an optional config file
var settings *config.Config

func loadSettings() {
	cfg, err := config.Load(os.Getenv("PULSE_CONFIG"))
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}
	settings = cfg
}

// addServiceFlags registers the flags shared by every command that opens the
// database.
func addServiceFlags(fs *flag.FlagSet) {
	fs.StringVar(&settings.Storage.DBPath, "db", settings.Storage.DBPath, "Path to the SQLite database file")
	fs.IntVar(&settings.Monitor.SampleRate, "rate", settings.Monitor.SampleRate, "Acquisition sample rate in Hz")
	fs.Float64Var(&settings.Monitor.WindowSeconds, "window", settings.Monitor.WindowSeconds, "Detection window in seconds")
	fs.IntVar(&settings.Monitor.SmoothingWindow, "smoothing", settings.Monitor.SmoothingWindow, "Moving average length in samples")
	fs.DurationVar(&settings.Monitor.ComputeInterval, "interval", settings.Monitor.ComputeInterval, "Signal time between estimates")
}

// createService creates a new PulseRate service with configured options
func createService() (pulserate.Service, error) {
	return pulserate.NewService(
		pulserate.WithDBPath(settings.Storage.DBPath),
		pulserate.WithSampleRate(settings.Monitor.SampleRate),
		pulserate.WithWindowSize(ppg.WindowSizeFor(settings.Monitor.SampleRate, settings.Monitor.WindowSeconds)),
		pulserate.WithSmoothingWindow(settings.Monitor.SmoothingWindow),
		pulserate.WithComputeInterval(settings.Monitor.ComputeInterval),
	)
}

func mustService() pulserate.Service {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	return svc
}

// splitArgs separates a leading positional argument from the flags after it.
func splitArgs(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func main() {
	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	loadSettings()

	command := os.Args[1]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "replay":
		handleReplay(os.Args[2:])
	case "simulate":
		handleSimulate(os.Args[2:])
	case "inspect":
		handleInspect(os.Args[2:])
	case "watch":
		handleWatch(os.Args[2:])
	case "sessions":
		handleSessions(os.Args[2:])
	case "readings":
		handleReadings(os.Args[2:])
	case "delete":
		handleDelete(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 ____        _          ____       _
|  _ \ _   _| |___  ___|  _ \ __ _| |_ ___
| |_) | | | | / __|/ _ \ |_) / _' | __/ _ \
|  __/| |_| | \__ \  __/  _ < (_| | ||  __/
|_|    \__,_|_|___/\___|_| \_\__,_|\__\___|

        PPG Heart Rate CLI Tool
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println("Usage: pulserate <command> [arguments] [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  replay <wav>     Replay a PPG recording and store the readings")
	fmt.Println("                   [-channel N] [-label L]")
	fmt.Println("  simulate         Generate a synthetic PPG recording")
	fmt.Println("                   [-bpm 72] [-seconds 30] [-noise 0.02] [-out file.wav] [-replay]")
	fmt.Println("  inspect <wav>    Show recording info and its dominant pulse frequency")
	fmt.Println("                   [-channel N] [-png spectrogram.png]")
	fmt.Println("  watch            Live heart rate view of a simulated or NATS stream")
	fmt.Println("                   [-bpm 72] [-noise 0.02] [-nats url]")
	fmt.Println("  sessions         List stored sessions")
	fmt.Println("  readings <id>    Show the readings of a session")
	fmt.Println("  delete <id>      Delete a session and its readings")
	fmt.Println()
	fmt.Println("Service flags (replay, simulate, watch, sessions, readings, delete):")
	fmt.Println("  -db path  -rate Hz  -window seconds  -smoothing samples  -interval duration")
	fmt.Println()
	fmt.Println("Environment: PULSE_CONFIG, PULSE_STORAGE_DB_PATH, PULSE_MONITOR_SAMPLE_RATE, LOG_LEVEL")
}

func handleReplay(args []string) {
	log := logger.GetLogger()

	wavPath, flagArgs := splitArgs(args)
	cmd := flag.NewFlagSet("replay", flag.ExitOnError)
	channel := cmd.Int("channel", settings.Monitor.Channel, "Channel to analyse (IR is usually 1 on red/IR recordings)")
	label := cmd.String("label", "", "Session label (defaults to the file name)")
	addServiceFlags(cmd)
	cmd.Parse(flagArgs)

	if wavPath == "" {
		fmt.Println("Usage: pulserate replay <wav> [-channel N] [-label L]")
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	fmt.Println("🫀 Replaying recording...")
	report := replay(svc, wavPath, *label, *channel)
	printReport(report)
	log.Infof("Replayed %s into session %s", wavPath, report.SessionID)
}

func replay(svc pulserate.Service, path, label string, channel int) *pulserate.RecordingReport {
	log := logger.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := svc.ProcessRecording(ctx, path, label, channel)
	if err != nil {
		fmt.Printf("\n❌ Failed to replay recording: %v\n", err)
		log.Errorf("ProcessRecording failed: %v", err)
		os.Exit(1)
	}
	return report
}

func printReport(r *pulserate.RecordingReport) {
	fmt.Printf("\n✅ Processed %s\n", r.Filename)
	fmt.Printf("   Session:     %s\n", r.SessionID)
	fmt.Printf("   Sample rate: %d Hz\n", r.SampleRate)
	fmt.Printf("   Duration:    %s (%d samples)\n", r.Duration.Round(time.Millisecond), r.SampleCount)
	fmt.Println()

	if len(r.Readings) == 0 {
		fmt.Println("❌ No heart rate could be estimated")
		return
	}

	for _, rd := range r.Readings {
		fmt.Printf("   t=%6.1fs  %6.1f BPM  (%d peaks)\n", float64(rd.TakenAtMs)/1000, rd.BPM, rd.PeakCount)
	}
	mean, _ := r.MeanBPM()
	fmt.Printf("\n🫀 Mean: %.1f BPM over %d reading(s)", mean, len(r.Readings))
	if r.Missed > 0 {
		fmt.Printf(", %d window(s) without an estimate", r.Missed)
	}
	fmt.Println()
}

func handleSimulate(args []string) {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("simulate", flag.ExitOnError)
	bpm := cmd.Float64("bpm", 72, "Simulated heart rate")
	seconds := cmd.Int("seconds", 30, "Recording length in seconds")
	noise := cmd.Float64("noise", 0.02, "Noise as a fraction of pulse amplitude")
	out := cmd.String("out", "", "Write the recording to this WAV file")
	doReplay := cmd.Bool("replay", false, "Replay the generated recording")
	addServiceFlags(cmd)
	cmd.Parse(args)

	if *seconds <= 0 || *bpm <= 0 {
		fmt.Println("Error: -seconds and -bpm must be positive")
		os.Exit(1)
	}

	rate := settings.Monitor.SampleRate
	samples := recording.NewSynth(rate, *bpm, *noise).Generate(*seconds * rate)

	// The WAV is written under a temporary name and renamed into place once
	// complete. Without -out it only lives for the replay.
	dir := os.TempDir()
	if *out != "" {
		dir = filepath.Dir(*out)
		if err := utils.MakeDir(dir); err != nil {
			fmt.Printf("❌ Failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}
	}
	path := filepath.Join(dir, ".pulserate_sim_"+utils.GenerateUUID()+".wav")
	if err := recording.WriteWAV(path, samples, rate); err != nil {
		utils.DeleteFile(path)
		fmt.Printf("❌ Failed to write recording: %v\n", err)
		log.Errorf("WriteWAV failed: %v", err)
		os.Exit(1)
	}

	if *out == "" {
		defer utils.DeleteFile(path)
		*doReplay = true
	} else {
		if err := utils.MoveFile(path, *out); err != nil {
			utils.DeleteFile(path)
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		path = *out
		fmt.Printf("✅ Wrote %d samples (%ds at %d Hz, %.0f BPM) to %s\n", len(samples), *seconds, rate, *bpm, path)
	}

	if !*doReplay {
		return
	}

	svc := mustService()
	defer svc.Close()

	report := replay(svc, path, fmt.Sprintf("simulated %.0f BPM", *bpm), 0)
	printReport(report)
}

func handleInspect(args []string) {
	log := logger.GetLogger()

	wavPath, flagArgs := splitArgs(args)
	cmd := flag.NewFlagSet("inspect", flag.ExitOnError)
	channel := cmd.Int("channel", settings.Monitor.Channel, "Channel to analyse")
	png := cmd.String("png", "", "Write a spectrogram PNG to this path")
	cmd.Parse(flagArgs)

	if wavPath == "" {
		fmt.Println("Usage: pulserate inspect <wav> [-channel N] [-png out.png]")
		os.Exit(1)
	}

	info, err := recording.Probe(wavPath)
	if err != nil {
		fmt.Printf("❌ Failed to read recording: %v\n", err)
		log.Errorf("Probe failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("📄 %s\n", info.Filename)
	fmt.Printf("   Sample rate: %d Hz\n", info.SampleRate)
	fmt.Printf("   Channels:    %d\n", info.Channels)
	fmt.Printf("   Bit depth:   %d\n", info.BitDepth)
	fmt.Printf("   Duration:    %s\n", info.Duration.Round(time.Millisecond))

	rec, err := recording.ReadWAV(wavPath, *channel)
	if err != nil {
		fmt.Printf("❌ Failed to decode channel %d: %v\n", *channel, err)
		os.Exit(1)
	}

	if bpm, err := recording.DominantRate(rec.Samples, rec.SampleRate); err != nil {
		fmt.Printf("   Dominant:    n/a (%v)\n", err)
	} else {
		fmt.Printf("   Dominant:    %.1f BPM (spectral)\n", bpm)
	}

	if *png != "" {
		if err := recording.RenderSpectrogram(rec.Samples, rec.SampleRate, *png); err != nil {
			fmt.Printf("❌ Failed to render spectrogram: %v\n", err)
			log.Errorf("RenderSpectrogram failed: %v", err)
			os.Exit(1)
		}
		fmt.Printf("🖼  Spectrogram written to %s\n", *png)
	}
}

func handleSessions(args []string) {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("sessions", flag.ExitOnError)
	addServiceFlags(cmd)
	cmd.Parse(args)

	svc := mustService()
	defer svc.Close()

	sessions, err := svc.ListSessions()
	if err != nil {
		fmt.Printf("❌ Failed to list sessions: %v\n", err)
		log.Errorf("ListSessions failed: %v", err)
		os.Exit(1)
	}

	if len(sessions) == 0 {
		fmt.Println("\n📭 No sessions in database")
		return
	}

	fmt.Printf("\n📚 Found %d session(s):\n\n", len(sessions))
	for i, s := range sessions {
		fmt.Printf("%d. %s (%s)\n", i+1, s.Label, s.Source)
		fmt.Printf("   ID:      %s\n", s.ID)
		fmt.Printf("   Window:  %d samples at %d Hz, smoothing %d\n", s.WindowSize, s.SampleRate, s.SmoothingWindow)
		fmt.Printf("   Created: %s\n", s.CreatedAt.Format(time.DateTime))
		fmt.Println()
	}
}

func handleReadings(args []string) {
	log := logger.GetLogger()

	id, flagArgs := splitArgs(args)
	cmd := flag.NewFlagSet("readings", flag.ExitOnError)
	addServiceFlags(cmd)
	cmd.Parse(flagArgs)

	if id == "" {
		fmt.Println("Usage: pulserate readings <session_id>")
		os.Exit(1)
	}
	if !utils.IsUUID(id) {
		fmt.Printf("❌ %q is not a session ID\n", id)
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	readings, err := svc.ListReadings(id)
	if err != nil {
		fmt.Printf("❌ Failed to list readings: %v\n", err)
		log.Errorf("ListReadings failed: %v", err)
		os.Exit(1)
	}

	if len(readings) == 0 {
		fmt.Println("\n📭 No readings for this session")
		return
	}

	fmt.Printf("\n🫀 %d reading(s) for %s:\n\n", len(readings), id)
	for _, r := range readings {
		fmt.Printf("   t=%6.1fs  %6.1f BPM  (%d peaks)  %s\n",
			float64(r.TakenAtMs)/1000, r.BPM, r.PeakCount, r.CreatedAt.Format(time.TimeOnly))
	}
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	id, flagArgs := splitArgs(args)
	cmd := flag.NewFlagSet("delete", flag.ExitOnError)
	addServiceFlags(cmd)
	cmd.Parse(flagArgs)

	if id == "" {
		fmt.Println("Usage: pulserate delete <session_id>")
		os.Exit(1)
	}
	if !utils.IsUUID(id) {
		fmt.Printf("❌ %q is not a session ID\n", id)
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	session, err := svc.GetSession(id)
	if err != nil {
		fmt.Printf("❌ Session not found (ID: %s)\n", id)
		log.Warnf("Session %s not found: %v", id, err)
		os.Exit(1)
	}

	if err := svc.DeleteSession(id); err != nil {
		fmt.Printf("❌ Failed to delete session: %v\n", err)
		log.Errorf("DeleteSession failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Successfully deleted session:\n")
	fmt.Printf("   %s (%s)\n", session.Label, session.ID)
}
