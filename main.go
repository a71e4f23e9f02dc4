package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ragyverse/audio"
	"ragyverse/backend"
	"ragyverse/capture"
	"ragyverse/config"
	"ragyverse/doctor"
	"ragyverse/hotkey"
	"ragyverse/log"
	"ragyverse/metrics"
	"ragyverse/playback"
	"ragyverse/session"
	"ragyverse/shutdown"
	"ragyverse/synth"
)

var version = "dev"

// playbackTimeout bounds fetching answer audio for playback and probing.
const playbackTimeout = 30 * time.Second

type cliFlags struct {
	backendURL  string
	ttsURL      string
	token       string
	format      string
	probe       string
	device      string
	hotkey      string
	metricsAddr string
	maxDuration time.Duration
	noCues      bool
	noVAD       bool
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cfg *config.Config, f *cliFlags) error {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend":
			cfg.Backend.URL = f.backendURL
		case "tts":
			cfg.TTS.URL = f.ttsURL
		case "token":
			cfg.Token = f.token
		case "format":
			cfg.Audio.Format = f.format
		case "probe":
			cfg.TTS.Probe = f.probe
		case "device":
			cfg.Audio.Device = f.device
		case "hotkey":
			cfg.Hotkey = f.hotkey
		case "metrics":
			cfg.Metrics.Addr = f.metricsAddr
		case "maxdur":
			cfg.Audio.MaxDuration = f.maxDuration
		case "nocues":
			cfg.Audio.Cues = !f.noCues
		case "novad":
			cfg.Audio.VAD = !f.noVAD
		}
	})
	return cfg.Validate()
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	go func() {
		log.Info("metrics_listen: " + addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server error: %v", err)
		}
	}()
}

// findDevice resolves a device by name, nil meaning the system default.
// interactive opens the picker with name preselected.
func findDevice(capability audio.Capability, name string, interactive bool) *audio.DeviceInfo {
	avail, ok := capability.(audio.Available)
	if !ok || (name == "" && !interactive) {
		return nil
	}
	ctx, err := avail.Open()
	if err != nil {
		log.Warnf("audio context: %v", err)
		return nil
	}
	defer ctx.Close()

	if interactive {
		dev, err := audio.SelectDevice(ctx, name)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		}
		return dev
	}
	devices, err := ctx.Devices()
	if err != nil {
		log.Warnf("device enumeration failed: %v", err)
		return nil
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i]
		}
	}
	log.Warnf("device not found: %s", name)
	fmt.Printf("Warning: device %q not found, using system default\n", name)
	return nil
}

func run() {
	var f cliFlags
	configFlag := flag.String("config", "", "YAML config file")
	envFlag := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	flag.StringVar(&f.backendURL, "backend", "", "Question answering backend URL")
	flag.StringVar(&f.ttsURL, "tts", "", "Speech synthesis server URL")
	flag.StringVar(&f.token, "token", "", "Auth token for speech synthesis")
	flag.StringVar(&f.format, "format", "", "Voice question audio format: flac or wav")
	flag.StringVar(&f.probe, "probe", "", "Answer audio validation: silent or audible")
	flag.StringVar(&f.device, "device", "", "Use named microphone device")
	flag.StringVar(&f.hotkey, "hotkey", "", "Push-to-talk combination (e.g. ctrl+shift+space)")
	flag.StringVar(&f.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flag.DurationVar(&f.maxDuration, "maxdur", 0, "Recording ceiling (1s to 1m)")
	flag.BoolVar(&f.noCues, "nocues", false, "Disable start/stop tones")
	flag.BoolVar(&f.noVAD, "novad", false, "Disable voice activity detection")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for PTT vs tap (e.g., 350ms)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven); optional WAV argument replaces the microphone")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("ragyverse %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if err := config.LoadDotEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg, err := config.Resolve(*configFlag, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := applyFlags(cfg, &f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Log.Path != "" && *logPathFlag == "" {
		if p, err := log.ResolveDir(cfg.Log.Path); err == nil {
			log.SetDir(p)
		}
	}

	if err := log.Init(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		serveMetrics(cfg.Metrics.Addr, reg)
	}

	qa, err := backend.New(backend.Config{
		BaseURL:   cfg.Backend.URL,
		Endpoints: cfg.Backend.Endpoints,
		Timeout:   cfg.Backend.Timeout,
		Metrics:   m,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := audio.NewOutput()
	playHTTP := &http.Client{Timeout: playbackTimeout}
	probeMode, _ := playback.ParseMode(cfg.TTS.Probe)
	tts, err := synth.New(synth.Config{
		BaseURL: cfg.TTS.URL,
		Path:    cfg.TTS.Path,
		Timeout: cfg.TTS.Timeout,
		Prober: playback.NewProber(playback.ProbeConfig{
			HTTP:    playHTTP,
			Output:  out,
			Mode:    probeMode,
			Metrics: m,
		}),
		Metrics: m,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	combo, _ := hotkey.ParseCombo(cfg.Hotkey)

	var capability audio.Capability
	if *testFlag && flag.NArg() > 0 {
		fake, err := audio.NewFakeContext(flag.Arg(0), true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			os.Exit(1)
		}
		capability = fake.Capability()
	} else if *testFlag {
		capability = audio.Unavailable{Reason: "no microphone in test mode"}
	} else {
		capability = audio.Probe()
	}
	if u, ok := capability.(audio.Unavailable); ok {
		log.Warnf("audio capture unavailable: %s", u.Reason)
	}

	captureCfg := capture.Config{
		MaxDuration: cfg.Audio.MaxDuration,
		Format:      cfg.Audio.Format,
		Gain:        cfg.Audio.Gain,
	}
	if cfg.Audio.VAD {
		captureCfg.NewDetector = capture.NewVAD
	}

	if *doctorFlag {
		ctx, cancel := shutdown.Context(context.Background())
		defer cancel()
		code := doctor.Run(ctx, os.Stdout, doctor.Checks(doctor.Deps{
			Combo:      combo,
			Capability: capability,
			Capture:    captureCfg,
			Backend:    qa,
			Synth:      tts,
			Token:      cfg.Token,
			Clipboard:  true,
		}))
		log.Close()
		os.Exit(code)
	}

	if !*testFlag {
		captureCfg.Device = findDevice(capability, cfg.Audio.Device, *setupFlag)
	}

	var a *app
	captureCfg.OnEvent = func(ev capture.Event) {
		if a != nil {
			a.captureEvents(ev)
		}
	}
	recorder := capture.NewManager(capability, captureCfg)

	ctrl := session.New(session.Config{
		Recorder: recorder,
		Backend:  qa,
		Synth:    tts,
		Metrics:  m,
		Token:    cfg.Token,
	})
	cues := playback.NewCues(out, !cfg.Audio.Cues || *testFlag)
	player := playback.NewPlayer(playHTTP, out)

	log.SessionStart(qa.BaseURL(), tts.BaseURL(), cfg.Audio.Format)

	var sink EventSink = tuiSink{}
	if *testFlag {
		sink = &headlessSink{out: os.Stdout}
	}
	a = newApp(ctrl, player, cues, sink)

	var shutdownOnce sync.Once
	gracefulShutdown := func(code int) {
		shutdownOnce.Do(func() {
			player.Stop()
			ctrl.Close()
			log.SessionEnd(a.Answered())
			log.Close()
			tuiMu.Lock()
			p := tuiProgram
			tuiMu.Unlock()
			if p != nil {
				p.Quit()
			}
			os.Exit(code)
		})
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(0)
	}()

	if *testFlag {
		runTestMode(a)
		gracefulShutdown(0)
		return
	}

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(a, combo.String())
	tuiMu.Unlock()
	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
			gracefulShutdown(1)
		}
		gracefulShutdown(0)
	}()
	<-tuiReady
	// Replay the current state now that the program can receive it.
	sink.Snapshot(ctrl.Snapshot())

	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		sink.Notice(fmt.Sprintf("Hotkey unavailable (%v), use ctrl+t", err))
		select {}
	}
	defer hk.Unregister()

	hy := hotkey.NewHybrid(hk, *longPressFlag)
	defer hy.Close()
	for ev := range hy.Events() {
		switch ev.Action {
		case hotkey.Begin:
			log.Info("hotkey_begin")
			a.startVoice()
		case hotkey.End:
			log.Info("hotkey_end_" + string(ev.Mode))
			a.stopVoice()
		}
	}
}
