package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// RefreshAddress asks the device to re-send its full state.
const RefreshAddress = "/refresh"

// Counts is the channel layout the table is built from.
type Counts struct {
	Inputs    int
	Outputs   int
	Playbacks int
}

// Count returns the configured channel count for the type.
func (c Counts) Count(t ChannelType) int {
	switch t {
	case Input:
		return c.Inputs
	case Output:
		return c.Outputs
	case Playback:
		return c.Playbacks
	}
	return 0
}

// channelParams lists the kinds addressable on each bank. StereoLink is
// additionally restricted to even 0-based indices at build time.
var channelParams = map[ChannelType][]ParameterKind{
	Input: {
		Gain, StereoLink, MeterLevel, Mute, Phase,
		PhantomPower, HiZ, EqEnable, DynamicsEnable, LowCutEnable,
	},
	Output: {
		Gain, StereoLink, MeterLevel, Mute, Phase,
		EqEnable, DynamicsEnable, LowCutEnable,
	},
	Playback: {MeterLevel},
}

// Applicable reports whether the kind exists on the given bank.
func Applicable(t ChannelType, k ParameterKind) bool {
	for _, p := range channelParams[t] {
		if p == k {
			return true
		}
	}
	return false
}

// Table is the immutable map between wire addresses and descriptors.
// Built once at startup; lookups are read-only and safe for concurrent use.
type Table struct {
	counts    Counts
	byAddress map[string]Descriptor
}

// NewTable enumerates every valid address for the given channel layout.
func NewTable(c Counts) *Table {
	t := &Table{
		counts:    c,
		byAddress: make(map[string]Descriptor),
	}

	for _, ct := range []ChannelType{Input, Output, Playback} {
		for i := 0; i < c.Count(ct); i++ {
			for _, k := range channelParams[ct] {
				if k == StereoLink && i%2 != 0 {
					continue
				}
				d := Descriptor{Type: ct, Index: i, Param: k}
				t.byAddress[channelAddress(d)] = d
			}
		}
	}

	for out := 0; out < c.Outputs; out++ {
		for _, src := range []ChannelType{Input, Playback} {
			for in := 0; in < c.Count(src); in++ {
				key := MixSendKey{Output: out, Source: src, SourceIndex: in}
				vol := Descriptor{Param: MixSendVolume, Mix: key}
				pan := Descriptor{Param: MixSendPan, Mix: key}
				t.byAddress[mixAddress(key)] = vol
				t.byAddress[mixAddress(key)+"/pan"] = pan
			}
		}
	}

	return t
}

// Counts returns the layout the table was built from.
func (t *Table) Counts() Counts { return t.counts }

// Size returns the number of enumerated addresses.
func (t *Table) Size() int { return len(t.byAddress) }

// Resolve maps a wire address to its descriptor. ok is false for unknown
// addresses; callers log and drop those, they are never fatal.
func (t *Table) Resolve(addr string) (Descriptor, bool) {
	d, ok := t.byAddress[addr]
	return d, ok
}

// Address formats the canonical wire address for a descriptor, validating
// every index against the configured counts. Out-of-range descriptors fail
// closed with an error and no address.
func (t *Table) Address(d Descriptor) (string, error) {
	if d.Param.IsMixSend() {
		key := d.Mix
		if key.Source != Input && key.Source != Playback {
			return "", fmt.Errorf("mix source must be input or playback, got %s", key.Source)
		}
		if key.Output < 0 || key.Output >= t.counts.Outputs {
			return "", fmt.Errorf("mix output %d out of range 0..%d", key.Output, t.counts.Outputs-1)
		}
		if key.SourceIndex < 0 || key.SourceIndex >= t.counts.Count(key.Source) {
			return "", fmt.Errorf("mix source %s %d out of range", key.Source, key.SourceIndex)
		}
		if d.Param == MixSendPan {
			return mixAddress(key) + "/pan", nil
		}
		return mixAddress(key), nil
	}

	if d.Index < 0 || d.Index >= t.counts.Count(d.Type) {
		return "", fmt.Errorf("%s index %d out of range 0..%d", d.Type, d.Index, t.counts.Count(d.Type)-1)
	}
	if !Applicable(d.Type, d.Param) {
		return "", fmt.Errorf("%s has no %s parameter", d.Type, d.Param)
	}
	if d.Param == StereoLink && d.Index%2 != 0 {
		return "", fmt.Errorf("stereo link only exists on even indices, got %d", d.Index)
	}
	return channelAddress(d), nil
}

// ForEach calls fn for every enumerated address. Iteration order is
// unspecified.
func (t *Table) ForEach(fn func(addr string, d Descriptor)) {
	for a, d := range t.byAddress {
		fn(a, d)
	}
}

func channelAddress(d Descriptor) string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(d.Type.String())
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(d.Index + 1))
	b.WriteByte('/')
	b.WriteString(wireName(d.Type, d.Param))
	return b.String()
}

func mixAddress(key MixSendKey) string {
	return fmt.Sprintf("/mix/%d/%s/%d", key.Output+1, key.Source, key.SourceIndex+1)
}

// wireName returns the last path segment for a channel parameter. The gain
// control is spelled "gain" on inputs and "volume" on outputs.
func wireName(t ChannelType, k ParameterKind) string {
	if k == Gain && t == Output {
		return "volume"
	}
	return k.String()
}
