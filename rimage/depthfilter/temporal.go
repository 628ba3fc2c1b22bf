package depthfilter

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/rimage"
)

// Persistence decides when the temporal stage may back-fill an invalid sample from the previous
// output, based on how often the pixel was valid over the last eight frames.
type Persistence int

const (
	// PersistenceDisabled never back-fills.
	PersistenceDisabled Persistence = iota
	// Valid8of8 back-fills when the pixel was valid in each of the last 8 frames.
	Valid8of8
	// Valid2of3 back-fills when the pixel was valid in at least 2 of the last 3 frames.
	Valid2of3
	// Valid2of4 back-fills when the pixel was valid in at least 2 of the last 4 frames.
	Valid2of4
	// Valid2of8 back-fills when the pixel was valid in at least 2 of the last 8 frames.
	Valid2of8
	// Valid1of2 back-fills when the pixel was valid in at least 1 of the last 2 frames.
	Valid1of2
	// Valid1of5 back-fills when the pixel was valid in at least 1 of the last 5 frames.
	Valid1of5
	// Valid1of8 back-fills when the pixel was valid in at least 1 of the last 8 frames.
	Valid1of8
	// PersistAlways back-fills whenever a previous output exists.
	PersistAlways
)

var persistenceNames = []string{
	"disabled",
	"valid_8_of_8",
	"valid_2_of_3",
	"valid_2_of_4",
	"valid_2_of_8",
	"valid_1_of_2",
	"valid_1_of_5",
	"valid_1_of_8",
	"always",
}

func (p Persistence) String() string {
	if p < PersistenceDisabled || p > PersistAlways {
		return fmt.Sprintf("Persistence(%d)", int(p))
	}
	return persistenceNames[p]
}

// MarshalText returns the name of p.
func (p Persistence) MarshalText() ([]byte, error) {
	if p < PersistenceDisabled || p > PersistAlways {
		return nil, errors.Errorf("unknown persistence %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText parses a persistence name such as "valid_2_of_4".
func (p *Persistence) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, candidate := range persistenceNames {
		if candidate == name {
			*p = Persistence(i)
			return nil
		}
	}
	return errors.Errorf("unknown persistence %q, expected one of %s", name, strings.Join(persistenceNames, ", "))
}

// holds reports whether the rule is satisfied by history, whose lowest bit is the most recent
// previous frame.
func (p Persistence) holds(history uint8) bool {
	inLast := func(n int) int {
		return bits.OnesCount8(history & uint8((1<<n)-1))
	}
	switch p {
	case Valid8of8:
		return history == math.MaxUint8
	case Valid2of3:
		return inLast(3) >= 2
	case Valid2of4:
		return inLast(4) >= 2
	case Valid2of8:
		return inLast(8) >= 2
	case Valid1of2:
		return inLast(2) >= 1
	case Valid1of5:
		return inLast(5) >= 1
	case Valid1of8:
		return inLast(8) >= 1
	case PersistAlways:
		return true
	default:
		return false
	}
}

// Temporal smooths each disparity sample against the previous output of the same pixel. A valid
// sample within Delta of a valid previous output becomes Alpha*cur + (1-Alpha)*prev; a valid
// sample further away replaces it. An invalid sample is back-filled with the previous output when
// the pixel's validity history satisfies Persistence, and stays invalid otherwise. State is
// dropped whenever the resolution changes.
type Temporal struct {
	Alpha       float64
	Delta       float64
	Persistence Persistence

	width, height int
	last          []float64
	history       []uint8
	lookup        [256]bool
}

// NewTemporal returns a temporal stage.
func NewTemporal(alpha, delta float64, persistence Persistence) (*Temporal, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, errors.Errorf("temporal alpha must be in (0, 1], got %v", alpha)
	}
	if !(delta >= 0) {
		return nil, errors.Errorf("temporal delta must not be negative, got %v", delta)
	}
	if persistence < PersistenceDisabled || persistence > PersistAlways {
		return nil, errors.Errorf("unknown persistence %d", int(persistence))
	}
	t := &Temporal{Alpha: alpha, Delta: delta, Persistence: persistence}
	for h := 0; h < len(t.lookup); h++ {
		t.lookup[h] = persistence.holds(uint8(h))
	}
	return t, nil
}

// Name returns "temporal".
func (t *Temporal) Name() string {
	return "temporal"
}

// Reset forgets every previous frame.
func (t *Temporal) Reset() {
	t.width, t.height = 0, 0
	t.last = nil
	t.history = nil
}

// Primed reports whether the stage holds state for a previous frame.
func (t *Temporal) Primed() bool {
	return t.last != nil
}

// Process blends in with the previous output.
func (t *Temporal) Process(in *rimage.RangeBuffer) (*rimage.RangeBuffer, error) {
	if err := checkInput(t.Name(), in, rimage.DisparityDomain); err != nil {
		return nil, err
	}
	if in.Width() != t.width || in.Height() != t.height || t.last == nil {
		t.width, t.height = in.Width(), in.Height()
		t.last = make([]float64, len(in.Data()))
		t.history = make([]uint8, len(in.Data()))
	}

	out := in.Clone()
	dst := out.Data()
	for i, cur := range in.Data() {
		prev := t.last[i]
		history := t.history[i]
		switch {
		case cur > 0 && prev > 0:
			if math.Abs(cur-prev) <= t.Delta {
				dst[i] = t.Alpha*cur + (1-t.Alpha)*prev
			}
		case cur > 0:
		case prev > 0 && t.lookup[history]:
			dst[i] = prev
		default:
			dst[i] = 0
		}
		valid := uint8(0)
		if cur > 0 {
			valid = 1
		}
		t.history[i] = history<<1 | valid
		t.last[i] = dst[i]
	}
	return out, nil
}
