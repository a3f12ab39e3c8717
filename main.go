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

	"recap/audio"
	"recap/config"
	"recap/controller"
	"recap/hotkey"
	"recap/log"
	"recap/pipeline"
	"recap/shutdown"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(ctrl *controller.Controller) {
	shutdownOnce.Do(func() {
		if ctrl != nil {
			ctrl.Stop()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func parseMode(s string) (controller.Mode, error) {
	switch s {
	case "continuous":
		return controller.ModeContinuous, nil
	case "push-to-talk":
		return controller.ModePushToTalk, nil
	}
	return 0, fmt.Errorf("unknown mode %q (use continuous or push-to-talk)", s)
}

func resolveKey(configured string, envVars ...string) string {
	if configured != "" {
		return configured
	}
	for _, v := range envVars {
		if val := os.Getenv(v); val != "" {
			return val
		}
	}
	return ""
}

func run() {
	configFlag := flag.String("config", "", "Config file path (default: XDG config location)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	modeFlag := flag.String("mode", "", "Capture mode: continuous or push-to-talk (overrides config)")
	windowFlag := flag.Int("window", 0, "Extraction window in minutes: 1, 3 or 5 (overrides config)")
	directFlag := flag.Bool("direct", false, "Send extracted audio straight to the reasoning model")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	holdFlag := flag.Duration("holdpress", 350*time.Millisecond, "Hold threshold separating tap from push-to-talk (e.g., 350ms)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("recap %s\n", version)
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
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
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

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Enabled {
		fmt.Println("recap is disabled in config")
		os.Exit(0)
	}
	if *modeFlag != "" {
		cfg.DefaultMode = *modeFlag
	}
	if *windowFlag != 0 {
		cfg.WindowMinutes = *windowFlag
	}
	if *directFlag {
		cfg.SendAudioDirectly = true
	}
	defaultMode, err := parseMode(cfg.DefaultMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	switch cfg.WindowMinutes {
	case 1, 3, 5:
	default:
		fmt.Fprintf(os.Stderr, "Error: window must be 1, 3 or 5 minutes\n")
		os.Exit(1)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	transcribeKey := resolveKey(cfg.TranscribeKey, "RECAP_TRANSCRIBE_KEY", "GROQ_API_KEY")
	reasonKey := resolveKey(cfg.ReasonKey, "RECAP_REASON_KEY", "OPENAI_API_KEY")
	if transcribeKey == "" && !cfg.SendAudioDirectly {
		fmt.Fprintln(os.Stderr, "Error: no transcription API key (set GROQ_API_KEY or transcribe_key in config)")
		os.Exit(1)
	}
	if reasonKey == "" {
		fmt.Fprintln(os.Stderr, "Error: no reasoning API key (set OPENAI_API_KEY or reason_key in config)")
		os.Exit(1)
	}

	whisper := pipeline.NewWhisper(cfg.TranscribeURL, transcribeKey, cfg.Model)
	if cfg.Language != "" {
		whisper.SetLanguage(cfg.Language)
	}
	chat := pipeline.NewChat(cfg.ReasonURL, reasonKey, "")
	whisper.Warm()
	chat.Warm()

	ctrl := controller.New(actx, defaultMode, controller.Options{
		Device:          selectedDevice,
		SystemAudio:     cfg.SystemAudio,
		Format:          cfg.Format,
		SegmentDuration: cfg.SegmentDuration(),
		BufferMax:       cfg.BufferMax(),
		SendDirect:      cfg.SendAudioDirectly,
		Instruction:     cfg.InstructionPrompt,
		Window:          cfg.WindowMinutes,
	}, whisper, chat)

	var sink EventSink = nullSink{}
	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()
		sink = tuiSink{}

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown(ctrl)
		}()
		<-tuiReady
	}
	go pumpEvents(ctrl, sink)

	deviceName := "system default"
	if selectedDevice != nil {
		deviceName = selectedDevice.Name
		if audio.IsBluetooth(deviceName) {
			sink.Warning("bluetooth microphone: capture quality may be reduced")
		}
	}
	tuiSend(StatusLineMsg{Text: fmt.Sprintf("[%s | %s | %dm window | key: %s | mic: %s]",
		cfg.Format, defaultMode, cfg.WindowMinutes, cfg.Hotkey, deviceName)})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(ctrl)
	}()

	combo, err := hotkey.ParseCombo(cfg.Hotkey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	hk, err := hotkey.New(combo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	// Continuous mode records from launch so the buffer is already
	// filling when the first recall comes.
	if defaultMode == controller.ModeContinuous {
		if err := ctrl.Start(); err != nil {
			log.Errorf("capture start error: %v", err)
			fmt.Fprintf(os.Stderr, "Error starting capture: %v\n", err)
			os.Exit(1)
		}
	}

	hy := hotkey.NewHybrid(hk, *holdFlag)
	for g := range hy.Gestures() {
		switch g {
		case hotkey.GestureTap:
			if ctrl.Mode() != controller.ModeContinuous {
				sink.Warning("hold the key to talk in push-to-talk mode")
				continue
			}
			go func() {
				// Errors already surface through the event channel.
				ctrl.ExtractAndSend(context.Background(), cfg.WindowMinutes)
			}()

		case hotkey.GestureHoldStart:
			if ctrl.Mode() != controller.ModePushToTalk {
				if err := ctrl.SetMode(controller.ModePushToTalk); err != nil {
					sink.Warning("busy, try again in a moment")
					continue
				}
			}
			if err := ctrl.Start(); err != nil {
				log.Errorf("push-to-talk start error: %v", err)
				sink.Failure(err)
			}

		case hotkey.GestureHoldEnd:
			if ctrl.Mode() != controller.ModePushToTalk || ctrl.Stage() != controller.StageRecording {
				continue
			}
			go func() {
				ctrl.StopAndSend(context.Background())
				if defaultMode == controller.ModeContinuous {
					if err := ctrl.SetMode(controller.ModeContinuous); err != nil {
						return
					}
					if err := ctrl.Start(); err != nil {
						log.Errorf("capture restart error: %v", err)
						sink.Failure(err)
					}
				}
			}()
		}
	}
}
