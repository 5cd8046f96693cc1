package quantize

import (
	"errors"
	"reflect"
	"testing"

	"tapgate/internal/capture"
)

func intervalCapture(offsets []uint64) *capture.RawCapture {
	events := make([]capture.RawEvent, len(offsets))
	for i, off := range offsets {
		events[i] = capture.RawEvent{OffsetMS: off, X: 0.5, Y: 0.5}
	}
	return &capture.RawCapture{
		Strategy:        capture.StrategyInterval,
		Events:          events,
		TotalDurationMS: offsets[len(offsets)-1],
	}
}

func TestQuantizeIntervalRounding(t *testing.T) {
	// Deltas 475, 124, 526, 75 round to 500, 100, 550, 100.
	rc := intervalCapture([]uint64{0, 475, 599, 1125, 1200})

	tmpl, err := Quantize(rc)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}
	want := []uint32{500, 100, 550, 100}
	if !reflect.DeepEqual(tmpl.Intervals, want) {
		t.Errorf("intervals = %v, want %v", tmpl.Intervals, want)
	}
	if len(tmpl.Zones) != 5 {
		t.Errorf("zones = %d, want 5", len(tmpl.Zones))
	}
}

func TestQuantizeIsDeterministic(t *testing.T) {
	rc := intervalCapture([]uint64{0, 480, 990, 1530, 2020})

	a, err := Quantize(rc)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Quantize(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("quantization is not deterministic")
	}
}

func TestQuantizeRejectsInvalidCaptures(t *testing.T) {
	if _, err := Quantize(nil); !errors.Is(err, ErrInvalidCapture) {
		t.Errorf("nil capture: %v", err)
	}

	short := intervalCapture([]uint64{0, 100})
	if _, err := Quantize(short); !errors.Is(err, ErrInvalidCapture) {
		t.Errorf("short capture: %v", err)
	}

	unknown := intervalCapture([]uint64{0, 100, 200, 300, 400})
	unknown.Strategy = capture.Strategy(42)
	if _, err := Quantize(unknown); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("unknown strategy: %v", err)
	}
}

func TestZoneMapping(t *testing.T) {
	cases := []struct {
		x, y float32
		want uint8
	}{
		{0.0, 0.0, 0},
		{0.5, 0.5, 4},
		{0.99, 0.99, 8},
		{1.0, 1.0, 8}, // clamped to the last zone
		{0.99, 0.0, 2},
	}
	for _, tc := range cases {
		if got := Zone(tc.x, tc.y); got != tc.want {
			t.Errorf("Zone(%v, %v) = %d, want %d", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestCellMappingAndCenter(t *testing.T) {
	cell := Cell(0.5, 0.5)
	if cell != 32*GridSize+32 {
		t.Errorf("Cell(0.5, 0.5) = %d", cell)
	}

	// A position and its own cell center land in the same cell.
	x, y := CellCenter(cell)
	if Cell(float32(x), float32(y)) != cell {
		t.Error("cell center maps outside its own cell")
	}

	if Cell(1.0, 1.0) != GridSize*GridSize-1 {
		t.Error("corner not clamped to last cell")
	}
}

func TestGridQuantizeSetsQuality(t *testing.T) {
	rc := &capture.RawCapture{
		Strategy: capture.StrategyGrid,
		Events: []capture.RawEvent{
			{OffsetMS: 0, X: 0.1, Y: 0.1},
			{OffsetMS: 400, X: 0.9, Y: 0.1},
			{OffsetMS: 800, X: 0.5, Y: 0.9},
		},
		TotalDurationMS: 800,
	}

	tmpl, err := Quantize(rc)
	if err != nil {
		t.Fatal(err)
	}
	if len(tmpl.Cells) != 3 {
		t.Fatalf("cells = %d", len(tmpl.Cells))
	}
	if tmpl.Quality == 0 {
		t.Error("well-spread pattern scored zero quality")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tmpl, err := Quantize(intervalCapture([]uint64{0, 500, 600, 1100, 1200}))
	if err != nil {
		t.Fatal(err)
	}

	data, err := tmpl.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tmpl, decoded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, tmpl)
	}
}

func TestDecodeRejectsMalformedTemplates(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{{"},
		{"wrong version", `{"version":9,"strategy":1,"intervals":[500],"zones":[0,0]}`},
		{"inconsistent interval data", `{"version":1,"strategy":1,"intervals":[500,100],"zones":[0,0]}`},
		{"empty cells", `{"version":1,"strategy":2}`},
		{"unknown strategy", `{"version":1,"strategy":7}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.data)); !errors.Is(err, ErrBadTemplate) {
				t.Errorf("got %v, want ErrBadTemplate", err)
			}
		})
	}
}

func TestEventCount(t *testing.T) {
	tmpl, err := Quantize(intervalCapture([]uint64{0, 500, 600, 1100, 1200}))
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.EventCount() != 5 {
		t.Errorf("event count = %d, want 5", tmpl.EventCount())
	}
}
