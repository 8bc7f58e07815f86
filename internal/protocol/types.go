package protocol

import "fmt"

// ChannelType identifies one of the mixer's channel banks.
type ChannelType int

const (
	Input ChannelType = iota
	Output
	Playback
)

func (t ChannelType) String() string {
	switch t {
	case Input:
		return "input"
	case Output:
		return "output"
	case Playback:
		return "playback"
	}
	return fmt.Sprintf("channeltype(%d)", int(t))
}

// ParseChannelType maps a wire path segment back to a ChannelType.
func ParseChannelType(s string) (ChannelType, bool) {
	switch s {
	case "input":
		return Input, true
	case "output":
		return Output, true
	case "playback":
		return Playback, true
	}
	return 0, false
}

// ParameterKind identifies one addressable control of a channel.
type ParameterKind int

const (
	Gain ParameterKind = iota // input gain or output volume, dB
	StereoLink                // pairs an even channel with its odd neighbour
	Mute
	Phase
	PhantomPower // inputs only
	HiZ          // inputs only
	EqEnable
	DynamicsEnable
	LowCutEnable
	MeterLevel // device -> client only
	MixSendVolume
	MixSendPan
)

func (k ParameterKind) String() string {
	switch k {
	case Gain:
		return "gain"
	case StereoLink:
		return "stereo"
	case Mute:
		return "mute"
	case Phase:
		return "phase"
	case PhantomPower:
		return "48v"
	case HiZ:
		return "hi-z"
	case EqEnable:
		return "eq"
	case DynamicsEnable:
		return "dynamics"
	case LowCutEnable:
		return "lowcut"
	case MeterLevel:
		return "level"
	case MixSendVolume:
		return "mixsend"
	case MixSendPan:
		return "mixsend-pan"
	}
	return fmt.Sprintf("parameterkind(%d)", int(k))
}

// Shape is the single value shape a ParameterKind carries.
type Shape int

const (
	ShapeFloat Shape = iota
	ShapeInt
	ShapeBool
)

// Shape returns the value shape of the kind.
func (k ParameterKind) Shape() Shape {
	switch k {
	case Gain, MeterLevel, MixSendVolume:
		return ShapeFloat
	case MixSendPan:
		return ShapeInt
	default:
		return ShapeBool
	}
}

// Writable reports whether clients may set the parameter.
func (k ParameterKind) Writable() bool {
	return k != MeterLevel
}

// IsMixSend reports whether the kind addresses a mix-matrix cell rather
// than a channel parameter.
func (k ParameterKind) IsMixSend() bool {
	return k == MixSendVolume || k == MixSendPan
}

// Value is the tagged scalar carried by one parameter.
type Value struct {
	shape Shape
	f     float32
	i     int32
	b     bool
}

func Float(f float32) Value { return Value{shape: ShapeFloat, f: f} }
func Int(i int32) Value     { return Value{shape: ShapeInt, i: i} }
func Bool(b bool) Value     { return Value{shape: ShapeBool, b: b} }

func (v Value) Shape() Shape   { return v.shape }
func (v Value) Float() float32 { return v.f }
func (v Value) Int() int32     { return v.i }
func (v Value) Bool() bool     { return v.b }

func (v Value) String() string {
	switch v.shape {
	case ShapeFloat:
		return fmt.Sprintf("%g", v.f)
	case ShapeInt:
		return fmt.Sprintf("%d", v.i)
	default:
		return fmt.Sprintf("%t", v.b)
	}
}

// MixSendKey identifies one cell of the mixing matrix.
type MixSendKey struct {
	Output      int         // destination output channel, 0-based
	Source      ChannelType // Input or Playback
	SourceIndex int         // source channel, 0-based
}

func (k MixSendKey) String() string {
	return fmt.Sprintf("mix %d <- %s %d", k.Output+1, k.Source, k.SourceIndex+1)
}

// Descriptor is the decoded identity of one addressable control. For
// mix-send kinds only Param and Mix are meaningful; for everything else
// Type, Index and Param identify the control.
type Descriptor struct {
	Type  ChannelType
	Index int // 0-based; 1-based on the wire
	Param ParameterKind
	Mix   MixSendKey
}

func (d Descriptor) String() string {
	if d.Param.IsMixSend() {
		return fmt.Sprintf("%s (%s)", d.Mix, d.Param)
	}
	return fmt.Sprintf("%s %d %s", d.Type, d.Index+1, d.Param)
}

// Wire value ranges, from the oscmix protocol.
const (
	InputGainMin  = 0.0
	InputGainMax  = 75.0
	OutputVolMin  = -65.0
	OutputVolMax  = 6.0
	MixVolumeMin  = -65.0
	MixVolumeMax  = 6.0
	MixPanMin     = -100
	MixPanMax     = 100
	DefaultMixVol = float32(-65.0)
	DefaultMixPan = int32(0)
)

// ValueRange returns the valid range for continuous parameters. ok is
// false for boolean and meter parameters, which have no range to clamp.
func ValueRange(d Descriptor) (min, max float32, ok bool) {
	switch d.Param {
	case Gain:
		if d.Type == Input {
			return InputGainMin, InputGainMax, true
		}
		return OutputVolMin, OutputVolMax, true
	case MixSendVolume:
		return MixVolumeMin, MixVolumeMax, true
	case MixSendPan:
		return MixPanMin, MixPanMax, true
	}
	return 0, 0, false
}
