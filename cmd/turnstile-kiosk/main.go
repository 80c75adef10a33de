// turnstile-kiosk runs one entrance terminal. It reads card numbers
// from a keyboard-wedge reader on stdin, one per line, and shows the
// access decision as a coloured status line. Typing "lock" ends an
// admin session.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/config"
	"github.com/BrandonDHaskell/Turnstile/internal/kiosk"
)

const firmwareVersion = "turnstile-kiosk/1.0"

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.KioskFromEnv()

	var (
		readerModel string
		width       int
		logPath     string
	)
	flagSet := pflag.NewFlagSet("turnstile-kiosk", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "access server base URL")
	flagSet.StringVar(&cfg.TerminalID, "terminal-id", cfg.TerminalID, "provisioned terminal id")
	flagSet.StringVar(&cfg.TerminalSecret, "terminal-secret", cfg.TerminalSecret, "terminal secret")
	flagSet.DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "window in which a repeated card is ignored")
	flagSet.DurationVar(&cfg.Feedback, "feedback", cfg.Feedback, "how long a result stays on screen")
	flagSet.DurationVar(&cfg.DuplicateFeedback, "duplicate-feedback", cfg.DuplicateFeedback, "how long the duplicate-tap screen stays up")
	flagSet.DurationVar(&cfg.AdminSession, "admin-session", cfg.AdminSession, "admin session length")
	flagSet.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "access check timeout")
	flagSet.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "connectivity check interval")
	flagSet.StringVar(&readerModel, "reader-model", "", "reader model reported in heartbeats")
	flagSet.IntVar(&width, "width", 48, "status line width")
	flagSet.StringVar(&logPath, "log-file", "", "write logs here instead of stderr")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if cfg.TerminalID == "" || cfg.TerminalSecret == "" {
		return errors.New("terminal id and secret are required (TURNSTILE_TERMINAL_ID, TURNSTILE_TERMINAL_SECRET)")
	}

	logOut := os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.New(logOut, "turnstile-kiosk ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	client := kiosk.NewClient(cfg.ServerURL, cfg.TerminalID, cfg.TerminalSecret)
	ctrl := kiosk.NewController(client, kiosk.NewTerminalDisplay(os.Stdout, width), kiosk.Config{
		Debounce:          cfg.Debounce,
		Feedback:          cfg.Feedback,
		DuplicateFeedback: cfg.DuplicateFeedback,
		AdminSession:      cfg.AdminSession,
		RequestTimeout:    cfg.RequestTimeout,
		Clock:             clk,
		Logger:            logger,
	})

	monitor := kiosk.NewMonitor(client, ctrl, kiosk.MonitorConfig{
		Interval:        cfg.HeartbeatInterval,
		Timeout:         cfg.RequestTimeout,
		FirmwareVersion: firmwareVersion,
		ReaderModel:     readerModel,
		Clock:           clk,
		Logger:          logger,
	})
	go monitor.Run(ctx)
	go tickCountdown(ctx, ctrl, clk)

	logger.Printf("terminal %s using %s", cfg.TerminalID, cfg.ServerURL)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.EqualFold(strings.TrimSpace(line), "lock") {
				ctrl.Lock()
				continue
			}
			// Taps run concurrently so the controller can drop a
			// second read while the first is in flight.
			go ctrl.Input(ctx, line+"\n")
		}
	}
}

// tickCountdown redraws the screen once a second during an admin
// session so the countdown moves.
func tickCountdown(ctx context.Context, ctrl *kiosk.Controller, clk clock.Clock) {
	ticker := clk.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctrl.Snapshot().Mode == kiosk.ModeAdmin {
				ctrl.Refresh()
			}
		}
	}
}
