package mixer

import (
	"fmt"
	"sort"
	"sync"

	"oscmix2mqtt/internal/logger"
	"oscmix2mqtt/internal/protocol"

	"github.com/chabad360/go-osc/osc"
)

// RejectedWriteError is returned synchronously when an outbound write is
// refused. Callers treat it as an ignored action, not a failure.
type RejectedWriteError struct {
	Desc   protocol.Descriptor
	Reason string
}

func (e *RejectedWriteError) Error() string {
	return fmt.Sprintf("write to %s rejected: %s", e.Desc, e.Reason)
}

// StateChange is one observable mutation of the store.
type StateChange struct {
	Desc  protocol.Descriptor
	Value protocol.Value
}

// MeterSample is one coalesced meter reading.
type MeterSample struct {
	Type  protocol.ChannelType
	Index int
	Level float32
}

type paramKey struct {
	t protocol.ChannelType
	i int
	k protocol.ParameterKind
}

type meterKey struct {
	t protocol.ChannelType
	i int
}

type mixCell struct {
	volume float32
	pan    int32
}

// State is the authoritative mixer-state cache. All mutation goes through
// ApplyInbound (device reports) and ApplyOutbound (local commands), both
// serialized by one mutex; observers consume the Changes channel so no lock
// is ever held while external code runs.
type State struct {
	log   logger.Logger
	table *protocol.Table
	codec *protocol.Codec

	mu      sync.Mutex
	params  map[paramKey]protocol.Value
	mix     map[protocol.MixSendKey]mixCell
	meters  map[meterKey]float32
	pending map[meterKey]struct{}

	changes chan StateChange
}

func NewState(log logger.Logger, table *protocol.Table, codec *protocol.Codec) *State {
	s := &State{
		log:     log,
		table:   table,
		codec:   codec,
		changes: make(chan StateChange, 256),
	}
	s.reset()
	return s
}

func (s *State) reset() {
	s.params = make(map[paramKey]protocol.Value)
	s.mix = make(map[protocol.MixSendKey]mixCell)
	s.meters = make(map[meterKey]float32)
	s.pending = make(map[meterKey]struct{})
}

// Changes delivers every state mutation in apply order. The channel is
// buffered; when a consumer falls behind the oldest event is dropped so the
// receive loop never blocks.
func (s *State) Changes() <-chan StateChange { return s.changes }

func (s *State) emit(c StateChange) {
	for {
		select {
		case s.changes <- c:
			return
		default:
		}
		select {
		case old := <-s.changes:
			s.log.With(logger.Fields{"module": "mixer"}).Warnf("slow subscriber, dropped change for %s", old.Desc)
		default:
		}
	}
}

// ApplyInbound records one device report. The device is authoritative: the
// value is stored unconditionally, even on an active link follower.
func (s *State) ApplyInbound(u protocol.Update) {
	d := u.Desc

	s.mu.Lock()
	switch {
	case d.Param == protocol.MeterLevel:
		mk := meterKey{d.Type, d.Index}
		s.meters[mk] = u.Value.Float()
		s.pending[mk] = struct{}{}
		s.mu.Unlock()
		// Meter traffic is rate-limited by the aggregator, not re-emitted
		// per datagram.
		return

	case d.Param.IsMixSend():
		cell, ok := s.mix[d.Mix]
		if !ok {
			cell = mixCell{volume: protocol.DefaultMixVol, pan: protocol.DefaultMixPan}
		}
		if d.Param == protocol.MixSendVolume {
			cell.volume = u.Value.Float()
		} else {
			cell.pan = u.Value.Int()
		}
		s.mix[d.Mix] = cell

	default:
		// Covers StereoLink too: a false transition simply clears the flag,
		// a true transition marks the follower read-only from local writes.
		// No value copying either way; the device reports convergence itself.
		s.params[paramKey{d.Type, d.Index, d.Param}] = u.Value
	}
	s.mu.Unlock()

	s.emit(StateChange{Desc: d, Value: u.Value})
}

// ApplyOutbound validates and applies one local command, returning the
// encoded message for the transport. The store is updated optimistically;
// a later device echo may overwrite it.
func (s *State) ApplyOutbound(d protocol.Descriptor, v protocol.Value) (*osc.Message, error) {
	if !d.Param.Writable() {
		return nil, &RejectedWriteError{Desc: d, Reason: "not writable"}
	}
	if v.Shape() != d.Param.Shape() {
		return nil, &RejectedWriteError{Desc: d, Reason: "wrong value shape"}
	}
	if _, err := s.table.Address(d); err != nil {
		return nil, &RejectedWriteError{Desc: d, Reason: err.Error()}
	}

	v = s.clamp(d, v)

	s.mu.Lock()

	if reason, ok := s.lockedRejection(d); ok {
		s.mu.Unlock()
		return nil, &RejectedWriteError{Desc: d, Reason: reason}
	}

	var msg *osc.Message
	var err error

	if d.Param.IsMixSend() {
		cell, ok := s.mix[d.Mix]
		if !ok {
			cell = mixCell{volume: protocol.DefaultMixVol, pan: protocol.DefaultMixPan}
		}
		if d.Param == protocol.MixSendVolume {
			cell.volume = v.Float()
		} else {
			cell.pan = v.Int()
		}
		// The wire set is atomic over volume and pan, so the cached partner
		// value always rides along.
		msg, err = s.codec.EncodeMixSet(d.Mix, cell.volume, cell.pan)
		if err == nil {
			s.mix[d.Mix] = cell
		}
	} else {
		msg, err = s.codec.Encode(d, v)
		if err == nil {
			s.params[paramKey{d.Type, d.Index, d.Param}] = v
		}
	}

	s.mu.Unlock()

	if err != nil {
		return nil, &RejectedWriteError{Desc: d, Reason: err.Error()}
	}

	s.emit(StateChange{Desc: d, Value: v})
	return msg, nil
}

// lockedRejection reports whether the stereo-link rule forbids a local
// write to the target. Mutex must be held.
func (s *State) lockedRejection(d protocol.Descriptor) (string, bool) {
	if d.Param.IsMixSend() {
		if s.lockedFollower(d.Mix.Source, d.Mix.SourceIndex) {
			return "linked", true
		}
		if s.lockedFollower(protocol.Output, d.Mix.Output) {
			return "linked", true
		}
		return "", false
	}
	// Writing the link flag itself always targets the even leader index.
	if d.Param == protocol.StereoLink {
		return "", false
	}
	if s.lockedFollower(d.Type, d.Index) {
		return "linked", true
	}
	return "", false
}

// lockedFollower reports whether (t, i) is the odd half of an active pair.
func (s *State) lockedFollower(t protocol.ChannelType, i int) bool {
	if i%2 != 1 {
		return false
	}
	v, ok := s.params[paramKey{t, i - 1, protocol.StereoLink}]
	return ok && v.Bool()
}

// clamp pins continuous values to their wire range before transmission.
func (s *State) clamp(d protocol.Descriptor, v protocol.Value) protocol.Value {
	min, max, ok := protocol.ValueRange(d)
	if !ok {
		return v
	}
	switch v.Shape() {
	case protocol.ShapeFloat:
		f := v.Float()
		if f < min || f > max {
			clamped := f
			if clamped < min {
				clamped = min
			}
			if clamped > max {
				clamped = max
			}
			s.log.With(logger.Fields{"module": "mixer"}).Debugf("clamped %s from %g to %g", d, f, clamped)
			return protocol.Float(clamped)
		}
	case protocol.ShapeInt:
		n := v.Int()
		if n < int32(min) || n > int32(max) {
			clamped := n
			if clamped < int32(min) {
				clamped = int32(min)
			}
			if clamped > int32(max) {
				clamped = int32(max)
			}
			s.log.With(logger.Fields{"module": "mixer"}).Debugf("clamped %s from %d to %d", d, n, clamped)
			return protocol.Int(clamped)
		}
	}
	return v
}

// Clear returns the store to its post-construction defaults. Called on
// disconnect so a later session never sees stale data.
func (s *State) Clear() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
}

// Param returns the last-known value of a channel parameter.
func (s *State) Param(t protocol.ChannelType, i int, k protocol.ParameterKind) (protocol.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[paramKey{t, i, k}]
	return v, ok
}

// MixCell returns the (volume, pan) pair of one matrix cell, falling back
// to the documented defaults. ok reports whether the cell was ever touched.
func (s *State) MixCell(key protocol.MixSendKey) (volume float32, pan int32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.mix[key]
	if !ok {
		return protocol.DefaultMixVol, protocol.DefaultMixPan, false
	}
	return cell.volume, cell.pan, true
}

// MeterLevel returns the last reported level for a channel.
func (s *State) MeterLevel(t protocol.ChannelType, i int) (float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.meters[meterKey{t, i}]
	return v, ok
}

// Linked reports whether the pair led by even index i is active.
func (s *State) Linked(t protocol.ChannelType, i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[paramKey{t, i, protocol.StereoLink}]
	return ok && v.Bool()
}

// drainPendingMeters hands the channels with fresh reports to the
// aggregator and clears the pending set. Last value wins, no averaging.
func (s *State) drainPendingMeters() []MeterSample {
	s.mu.Lock()
	samples := make([]MeterSample, 0, len(s.pending))
	for mk := range s.pending {
		samples = append(samples, MeterSample{Type: mk.t, Index: mk.i, Level: s.meters[mk]})
	}
	s.pending = make(map[meterKey]struct{})
	s.mu.Unlock()

	sort.Slice(samples, func(a, b int) bool {
		if samples[a].Type != samples[b].Type {
			return samples[a].Type < samples[b].Type
		}
		return samples[a].Index < samples[b].Index
	})
	return samples
}
