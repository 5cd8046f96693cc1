// Package quantize canonicalizes raw gesture captures into stable,
// storable templates.
//
// Quantization rounds timing, position, and duration into discrete
// buckets so that natural micro-jitter between two performances of the
// same gesture disappears while the gesture's identity is preserved.
// Templates are the only form ever persisted, and only after encryption
// by the keystore; raw captures are discarded after quantization.
package quantize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"tapgate/internal/capture"
)

// Quantization parameters. These are part of the template format: changing
// them invalidates stored templates, which is why templates carry Version.
const (
	// IntervalQuantumMS is the rounding quantum for inter-event deltas.
	IntervalQuantumMS = 50

	// ZoneGridSize is the coarse position grid for the interval strategy.
	ZoneGridSize = 3

	// GridSize is the cell grid for the grid strategy.
	GridSize = 64

	// Version is the current template format version.
	Version = 1
)

var (
	ErrInvalidCapture  = errors.New("quantize: capture outside strategy bounds")
	ErrUnknownStrategy = errors.New("quantize: unknown strategy")
	ErrBadTemplate     = errors.New("quantize: malformed template")
)

// Template is the quantized, storable form of a capture.
//
// Interval strategy: Intervals holds rounded inter-event deltas (ms) and
// Zones a coarse ZoneGridSize² zone id per event.
//
// Grid strategy: Cells holds ordered GridSize² cell indices. Order is
// significant; two templates match only if every corresponding cell pair
// is identical. Quality records the registration-time pattern quality.
type Template struct {
	Version  uint8            `json:"version"`
	Strategy capture.Strategy `json:"strategy"`

	Intervals []uint32 `json:"intervals,omitempty"`
	Zones     []uint8  `json:"zones,omitempty"`

	Cells   []uint16 `json:"cells,omitempty"`
	Quality uint8    `json:"quality,omitempty"`
}

// Quantize converts a raw capture to a template. Deterministic and pure:
// the same capture always yields an identical template.
func Quantize(c *capture.RawCapture) (*Template, error) {
	if c == nil || !c.Valid() {
		return nil, ErrInvalidCapture
	}

	switch c.Strategy {
	case capture.StrategyInterval:
		return quantizeInterval(c), nil
	case capture.StrategyGrid:
		return quantizeGrid(c), nil
	default:
		return nil, ErrUnknownStrategy
	}
}

func quantizeInterval(c *capture.RawCapture) *Template {
	t := &Template{
		Version:   Version,
		Strategy:  capture.StrategyInterval,
		Intervals: make([]uint32, 0, len(c.Events)-1),
		Zones:     make([]uint8, 0, len(c.Events)),
	}

	for i, ev := range c.Events {
		if i > 0 {
			delta := ev.OffsetMS - c.Events[i-1].OffsetMS
			t.Intervals = append(t.Intervals, roundToQuantum(delta))
		}
		t.Zones = append(t.Zones, Zone(ev.X, ev.Y))
	}

	return t
}

func quantizeGrid(c *capture.RawCapture) *Template {
	t := &Template{
		Version:  Version,
		Strategy: capture.StrategyGrid,
		Cells:    make([]uint16, 0, len(c.Events)),
	}

	for _, ev := range c.Events {
		t.Cells = append(t.Cells, Cell(ev.X, ev.Y))
	}
	t.Quality = QualityScore(t.Cells)

	return t
}

// roundToQuantum rounds a millisecond delta to the nearest quantum.
func roundToQuantum(deltaMS uint64) uint32 {
	q := uint64(IntervalQuantumMS)
	rounded := ((deltaMS + q/2) / q) * q
	if rounded > math.MaxUint32 {
		rounded = math.MaxUint32
	}
	return uint32(rounded)
}

// Zone maps a normalized position to a coarse ZoneGridSize² zone id.
func Zone(x, y float32) uint8 {
	zx := discretize(x, ZoneGridSize)
	zy := discretize(y, ZoneGridSize)
	return uint8(zy*ZoneGridSize + zx)
}

// Cell maps a normalized position to a GridSize² cell index via
// floor(x·N) clamped to [0,N-1].
func Cell(x, y float32) uint16 {
	cx := discretize(x, GridSize)
	cy := discretize(y, GridSize)
	return uint16(cy*GridSize + cx)
}

// CellCenter returns the normalized center of a grid cell.
func CellCenter(cell uint16) (x, y float64) {
	cx := int(cell) % GridSize
	cy := int(cell) / GridSize
	return (float64(cx) + 0.5) / GridSize, (float64(cy) + 0.5) / GridSize
}

func discretize(v float32, n int) int {
	idx := int(math.Floor(float64(v) * float64(n)))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// Encode serializes a template for encryption and storage.
func (t *Template) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// Decode parses a previously encoded template.
func Decode(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadTemplate, err)
	}
	if t.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadTemplate, t.Version)
	}
	switch t.Strategy {
	case capture.StrategyInterval:
		if len(t.Zones) == 0 || len(t.Intervals) != len(t.Zones)-1 {
			return nil, fmt.Errorf("%w: inconsistent interval data", ErrBadTemplate)
		}
	case capture.StrategyGrid:
		if len(t.Cells) == 0 {
			return nil, fmt.Errorf("%w: empty cell sequence", ErrBadTemplate)
		}
	default:
		return nil, fmt.Errorf("%w: unknown strategy %d", ErrBadTemplate, t.Strategy)
	}
	return &t, nil
}

// EventCount returns the number of gesture events the template encodes.
func (t *Template) EventCount() int {
	switch t.Strategy {
	case capture.StrategyInterval:
		return len(t.Zones)
	case capture.StrategyGrid:
		return len(t.Cells)
	default:
		return 0
	}
}
