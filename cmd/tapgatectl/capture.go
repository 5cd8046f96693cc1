package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"tapgate/internal/capture"
)

// capturePattern records a gesture for the given strategy from the
// terminal. The terminal is a stand-in surface: interval patterns are
// tapped on the keyboard, grid patterns are entered as positions.
func capturePattern(strategy capture.Strategy, prompt string) (*capture.RawCapture, error) {
	switch strategy {
	case capture.StrategyInterval:
		return captureRhythm(prompt)
	case capture.StrategyGrid:
		return captureTaps(prompt)
	default:
		return nil, fmt.Errorf("unsupported strategy %v", strategy)
	}
}

// captureRhythm records keypress timing in raw mode. Any key is a tap;
// Enter ends the pattern, Esc or Ctrl-C cancels.
func captureRhythm(prompt string) (*capture.RawCapture, error) {
	lim := capture.StrategyInterval.Limits()
	fmt.Printf("%s: tap any key %d-%d times, Enter to finish, Esc to cancel.\n",
		prompt, lim.MinEvents, lim.MaxEvents)

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	session := capture.NewSession(capture.StrategyInterval)
	session.Start()

	var start time.Time
	buf := make([]byte, 1)
	count := 0
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			session.Cancel()
			return nil, err
		}

		switch buf[0] {
		case '\r', '\n':
			rc, ok := session.Finish()
			if !ok {
				return nil, fmt.Errorf("too few taps (minimum %d)", lim.MinEvents)
			}
			fmt.Print("\r\n")
			return rc, nil
		case 0x1b, 0x03: // Esc, Ctrl-C
			session.Cancel()
			return nil, errors.New("cancelled")
		}

		now := time.Now()
		if start.IsZero() {
			start = now
		}
		// The keyboard has no meaningful position; all taps land center.
		recorded := session.Record(capture.RawEvent{
			OffsetMS: uint64(now.Sub(start).Milliseconds()),
			X:        0.5,
			Y:        0.5,
		})
		if recorded {
			count++
			fmt.Printf("\r%s", strings.Repeat("*", count))
		}
	}
}

// captureTaps reads grid positions as "x y" pairs in [0,1], one per
// line, with a blank line ending the pattern. Order is part of the
// pattern.
func captureTaps(prompt string) (*capture.RawCapture, error) {
	lim := capture.StrategyGrid.Limits()
	fmt.Printf("%s: enter %d-%d taps as `x y` (0-1 each), blank line to finish.\n",
		prompt, lim.MinEvents, lim.MaxEvents)

	session := capture.NewSession(capture.StrategyGrid)
	session.Start()

	scanner := bufio.NewScanner(os.Stdin)
	var offset uint64
	count := 0
	for count < lim.MaxEvents {
		fmt.Printf("tap %d> ", count+1)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}

		x, y, err := parseTap(line)
		if err != nil {
			fmt.Printf("  %v\n", err)
			continue
		}

		// Synthetic timing: grid matching ignores it, but the capture
		// still needs a monotone event order.
		if session.Record(capture.RawEvent{OffsetMS: offset, X: x, Y: y}) {
			offset += 500
			count++
		}
	}

	rc, ok := session.Finish()
	if !ok {
		return nil, fmt.Errorf("too few taps (minimum %d)", lim.MinEvents)
	}
	return rc, nil
}

func parseTap(line string) (float32, float32, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, errors.New("expected two numbers, e.g. `0.2 0.8`")
	}
	x, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad x: %v", err)
	}
	y, err := strconv.ParseFloat(fields[1], 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad y: %v", err)
	}
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return 0, 0, errors.New("coordinates must be in [0,1]")
	}
	return float32(x), float32(y), nil
}

// readHiddenLine reads a line without echo, for recovery phrases.
func readHiddenLine(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
