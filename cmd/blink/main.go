package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gloworm-vision/gloworm-led/hardware/gpio"
	"github.com/gloworm-vision/gloworm-led/led"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	driver     string
	pigpioAddr string
	port       uint8
	pin        uint8
	activeLow  bool
	on         time.Duration
	off        time.Duration
	count      int
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:   "blink",
		Short: "Blink a single LED",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return run(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.driver, "driver", "sim", "GPIO backend (sim, pigpio)")
	flags.StringVar(&opts.pigpioAddr, "pigpio-addr", "localhost:8888", "pigpiod address")
	flags.Uint8Var(&opts.port, "port", 0, "GPIO port")
	flags.Uint8Var(&opts.pin, "pin", 0, "pin within the port")
	flags.BoolVar(&opts.activeLow, "active-low", false, "the LED lights when the pin is low")
	flags.DurationVar(&opts.on, "on", 500*time.Millisecond, "on time")
	flags.DurationVar(&opts.off, "off", 500*time.Millisecond, "off time")
	flags.IntVar(&opts.count, "count", 5, "number of blinks")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options) error {
	logger := logrus.New()

	var bank gpio.Bank
	switch opts.driver {
	case "sim":
		bank = gpio.NewSim(int(opts.port) + 1)
	case "pigpio":
		p, err := gpio.DialPigpio(opts.pigpioAddr)
		if err != nil {
			return fmt.Errorf("unable to dial pigpio: %w", err)
		}
		bank = p
	default:
		return fmt.Errorf("unknown driver %q", opts.driver)
	}
	if closer, ok := bank.(io.Closer); ok {
		defer closer.Close()
	}

	polarity := led.ActiveHigh
	if opts.activeLow {
		polarity = led.ActiveLow
	}

	dev := led.New(bank, led.WithClockRelease(true))
	if err := dev.Init(gpio.Port(opts.port), opts.pin, led.WithPolarity(polarity)); err != nil {
		return err
	}
	defer func() {
		if err := dev.DeInit(); err != nil {
			logger.WithError(err).Warn("unable to release led")
		}
	}()

	entry := logger.WithFields(logrus.Fields{"port": opts.port, "pin": opts.pin, "polarity": polarity})
	entry.Info("blinking")

	for i := 0; i < opts.count; i++ {
		if err := dev.Blink(opts.on, opts.off); err != nil {
			return err
		}
		entry.WithField("n", i+1).Debug("blink")
	}

	return nil
}
