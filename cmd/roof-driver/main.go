// Command roof-driver operates a roll-off observatory roof over GPIO
// and publishes its state to MQTT and a local status page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/roof-driver/internal/engine"
	"github.com/sweeney/roof-driver/internal/gpio"
	"github.com/sweeney/roof-driver/internal/mqtt"
	"github.com/sweeney/roof-driver/internal/park"
	"github.com/sweeney/roof-driver/internal/pinmap"
	"github.com/sweeney/roof-driver/internal/roof"
	"github.com/sweeney/roof-driver/internal/status"
	"github.com/sweeney/roof-driver/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/roof-driver/pins.json", "Pin configuration file")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	idlePoll := flag.Duration("idle-poll", time.Second, "Polling interval while stationary")
	activePoll := flag.Duration("active-poll", 500*time.Millisecond, "Polling interval while moving")
	parkFile := flag.String("park-file", "/var/lib/roof-driver/park.json", "Park state file")
	chip := flag.String("chip", "gpiochip0", "GPIO character device name")
	sim := flag.Bool("sim", false, "Simulate the roof hardware instead of using GPIO")
	simTravel := flag.Duration("sim-travel", 3*time.Second, "Simulated roof travel time")
	printState := flag.Bool("print-state", false, "Print current switch state and exit")

	flag.Parse()

	if err := run(*configPath, *broker, *httpAddr, *idlePoll, *activePoll, *parkFile, *chip, *sim, *simTravel, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath, broker, httpAddr string, idlePoll, activePoll time.Duration, parkFile, chip string, sim bool, simTravel time.Duration, printState bool) error {
	cfg, err := pinmap.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load pin config: %w", err)
		}
		log.Printf("no pin config at %s, using defaults", configPath)
		cfg = pinmap.Default()
	}
	pins, err := cfg.Map()
	if err != nil {
		return fmt.Errorf("pin config: %w", err)
	}

	eng := engine.New(pins)
	ctl := roof.New(eng, park.NewStore(parkFile), roof.Config{
		Timeout:    cfg.Timeout(),
		IdlePoll:   idlePoll,
		ActivePoll: activePoll,
	})

	// reopen builds a fresh hardware session, used at startup and again
	// when the fault monitor forces a reset.
	var simulator *gpio.Simulator
	reopen := func() (gpio.Conn, error) {
		if !sim {
			return gpio.Open(chip)
		}
		if simulator == nil {
			simulator = gpio.NewSimulator(simConfig(pins, simTravel))
		} else {
			simulator.Reopen()
		}
		return simulator, nil
	}

	conn, err := reopen()
	if err != nil {
		return fmt.Errorf("open gpio: %w", err)
	}
	if err := ctl.Connect(conn); err != nil {
		conn.Close()
		return fmt.Errorf("connect: %w", err)
	}
	defer ctl.Disconnect()

	// Print state mode
	if printState {
		res := ctl.Tick(time.Now())
		fmt.Printf("state: %s opened=%v closed=%v locked=%v aux=%v\n",
			res.State, res.Opened, res.Closed, res.Locked, res.Aux)
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		IdlePollMs:   idlePoll.Milliseconds(),
		ActivePollMs: activePoll.Milliseconds(),
		TimeoutS:     int64(cfg.Timeout() / time.Second),
		Broker:       broker,
		HTTPPort:     httpAddr,
		Simulated:    sim,
	})

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	var srv *web.Server
	if httpAddr != "" {
		srv = web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: timeout=%v idle-poll=%v active-poll=%v broker=%s sim=%v",
		cfg.Timeout(), idlePoll, activePoll, broker, sim)

	timer := time.NewTimer(idlePoll)
	defer timer.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, publisher, publisher, publisher.Commands(), tracker, srv,
		time.Now, timer.C, timer.Reset, sigCh, reopen)
}

// runLoop drives the controller until a shutdown signal arrives. All
// time sources and channels are injected so tests can script them.
func runLoop(
	ctl *roof.Controller,
	publisher mqtt.Publisher,
	mqttStatus mqtt.ConnectionStatus,
	commands <-chan roof.Command,
	tracker *status.Tracker,
	srv *web.Server,
	now func() time.Time,
	tick <-chan time.Time,
	resetTick func(time.Duration) bool,
	sig <-chan os.Signal,
	reopen func() (gpio.Conn, error),
) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case cmd := <-commands:
			log.Printf("command: %s", cmd)
			if err := ctl.HandleCommand(cmd, now()); err != nil {
				// Rejections are normal operation: locked, already at
				// limit, hardware fault. Log and keep polling.
				log.Printf("command %s rejected: %v", cmd, err)
			}
			// Resolve the command's effects immediately rather than
			// waiting out the current poll interval.
			publishTick(ctl, publisher, mqttStatus, tracker, srv, resetTick, now(), reopen)

		case <-tick:
			publishTick(ctl, publisher, mqttStatus, tracker, srv, resetTick, now(), reopen)
		}
	}
}

// publishTick runs one controller tick and fans the result out to MQTT,
// the status tracker, and the websocket clients.
func publishTick(
	ctl *roof.Controller,
	publisher mqtt.Publisher,
	mqttStatus mqtt.ConnectionStatus,
	tracker *status.Tracker,
	srv *web.Server,
	resetTick func(time.Duration) bool,
	t time.Time,
	reopen func() (gpio.Conn, error),
) {
	res := ctl.Tick(t)

	for _, event := range res.Events {
		log.Printf("event: %s %s", event.Kind, event.Detail)
		if err := publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}

	if tracker != nil {
		tracker.Update(res, ctl.Counters())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		if len(res.Events) > 0 {
			if err := publisher.PublishStatus(status.FormatJSON(tracker.Snapshot())); err != nil {
				log.Printf("status publish error: %v", err)
			}
		}
	}
	if srv != nil {
		srv.Push()
	}

	if res.ResetNeeded {
		log.Printf("too many consecutive gpio failures, resetting hardware session")
		resetSession(ctl, publisher, tracker, t, reopen)
	}

	resetTick(res.NextPoll)
}

// resetSession performs the fault-monitor hard reset: reopen the
// hardware and reconnect the controller, announcing the reset on the
// system topic.
func resetSession(ctl *roof.Controller, publisher mqtt.Publisher, tracker *status.Tracker, t time.Time, reopen func() (gpio.Conn, error)) {
	conn, err := reopen()
	if err != nil {
		log.Printf("session reset: reopen gpio: %v", err)
		return
	}
	if err := ctl.Reconnect(conn); err != nil {
		log.Printf("session reset: reconnect: %v", err)
		return
	}
	event := mqtt.SystemEvent{Timestamp: t, Event: "RESET", Reason: "GPIO_FAULTS"}
	if tracker != nil {
		event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "RESET", "GPIO_FAULTS")
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Printf("reset publish error: %v", err)
	}
}

// simConfig derives a Simulator wiring from the pin map so the
// simulated roof answers on the same pins the engine drives.
func simConfig(pins *pinmap.Map, travel time.Duration) gpio.SimConfig {
	cfg := gpio.SimConfig{
		Travel:      travel,
		StartClosed: true,
	}
	if def, ok := pins.Output(pinmap.OutOpen); ok {
		cfg.OpenPin = def.Pin
		cfg.RelaysActiveHigh = def.ActiveHigh
	}
	if def, ok := pins.Output(pinmap.OutClose); ok {
		cfg.ClosePin = def.Pin
	}
	if def, ok := pins.Output(pinmap.OutAbort); ok {
		cfg.AbortPin = def.Pin
	}
	if def, ok := pins.Output(pinmap.OutLock); ok {
		cfg.LockPin = def.Pin
	}
	if def, ok := pins.Output(pinmap.OutAux); ok {
		cfg.AuxPin = def.Pin
	}
	if def, ok := pins.Input(pinmap.InOpened); ok {
		cfg.OpenedPin = def.Pin
		cfg.SwitchesActiveHigh = def.ActiveHigh
	}
	if def, ok := pins.Input(pinmap.InClosed); ok {
		cfg.ClosedPin = def.Pin
	}
	if def, ok := pins.Input(pinmap.InLocked); ok {
		cfg.LockedPin = def.Pin
	}
	if def, ok := pins.Input(pinmap.InAuxState); ok {
		cfg.AuxStatePin = def.Pin
	}
	return cfg
}
