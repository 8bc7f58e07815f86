package protocol

import (
	"fmt"

	"github.com/chabad360/go-osc/osc"
)

// MalformedMessageError reports a datagram that could not be decoded into a
// well-shaped message. The offending bytes are kept for log previews.
type MalformedMessageError struct {
	Data []byte
	Err  error
}

func (e *MalformedMessageError) Error() string {
	preview := e.Data
	if len(preview) > 16 {
		preview = preview[:16]
	}
	return fmt.Sprintf("malformed message (%q): %v", preview, e.Err)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// UnknownAddressError reports a well-formed message whose address has no
// table entry. Expected during protocol evolution; never fatal.
type UnknownAddressError struct {
	Address string
}

func (e *UnknownAddressError) Error() string {
	return fmt.Sprintf("unknown address %q", e.Address)
}

// Update is one decoded state report from the device.
type Update struct {
	Desc  Descriptor
	Value Value
}

// Codec translates between descriptors and OSC datagrams.
type Codec struct {
	table *Table
}

func NewCodec(t *Table) *Codec {
	return &Codec{table: t}
}

// Decode parses one inbound datagram. A mix-send volume message carrying a
// trailing pan argument yields two updates, everything else yields one.
// Errors are *MalformedMessageError or *UnknownAddressError; the caller
// drops the datagram either way.
func (c *Codec) Decode(data []byte) ([]Update, error) {
	if len(data) == 0 {
		return nil, &MalformedMessageError{Data: data, Err: fmt.Errorf("empty datagram")}
	}

	msg, err := osc.NewMessageFromData(data)
	if err != nil {
		return nil, &MalformedMessageError{Data: data, Err: err}
	}

	d, ok := c.table.Resolve(msg.Address)
	if !ok {
		return nil, &UnknownAddressError{Address: msg.Address}
	}

	switch d.Param {
	case MeterLevel:
		// Meter messages carry one or more floats (some firmware adds a
		// trailing int); the first float is the level.
		f, err := argFloat(msg, 0)
		if err != nil {
			return nil, &MalformedMessageError{Data: data, Err: err}
		}
		return []Update{{Desc: d, Value: Float(f)}}, nil

	case MixSendVolume:
		f, err := argFloat(msg, 0)
		if err != nil {
			return nil, &MalformedMessageError{Data: data, Err: err}
		}
		updates := []Update{{Desc: d, Value: Float(f)}}
		if len(msg.Arguments) > 1 {
			pan, err := argInt(msg, 1)
			if err != nil {
				return nil, &MalformedMessageError{Data: data, Err: err}
			}
			updates = append(updates, Update{
				Desc:  Descriptor{Param: MixSendPan, Mix: d.Mix},
				Value: Int(pan),
			})
		}
		return updates, nil
	}

	v, err := argValue(msg, 0, d.Param.Shape())
	if err != nil {
		return nil, &MalformedMessageError{Data: data, Err: err}
	}
	return []Update{{Desc: d, Value: v}}, nil
}

// Encode builds the outbound message for one channel parameter. Mix-send
// kinds must go through EncodeMixSet, the wire set operation is atomic over
// volume and pan.
func (c *Codec) Encode(d Descriptor, v Value) (*osc.Message, error) {
	if d.Param.IsMixSend() {
		return nil, fmt.Errorf("mix-send parameters require EncodeMixSet")
	}
	addr, err := c.table.Address(d)
	if err != nil {
		return nil, err
	}
	if v.Shape() != d.Param.Shape() {
		return nil, fmt.Errorf("%s takes shape %v, got %v", d, d.Param.Shape(), v.Shape())
	}

	switch v.Shape() {
	case ShapeFloat:
		return osc.NewMessage(addr, v.Float()), nil
	case ShapeInt:
		return osc.NewMessage(addr, v.Int()), nil
	default:
		return osc.NewMessage(addr, boolToInt(v.Bool())), nil
	}
}

// EncodeMixSet builds the combined volume+pan set for one matrix cell.
func (c *Codec) EncodeMixSet(key MixSendKey, volume float32, pan int32) (*osc.Message, error) {
	addr, err := c.table.Address(Descriptor{Param: MixSendVolume, Mix: key})
	if err != nil {
		return nil, err
	}
	return osc.NewMessage(addr, volume, pan), nil
}

// EncodeRefresh builds the full-state re-send request.
func (c *Codec) EncodeRefresh() *osc.Message {
	return osc.NewMessage(RefreshAddress)
}

func argValue(msg *osc.Message, i int, shape Shape) (Value, error) {
	switch shape {
	case ShapeFloat:
		f, err := argFloat(msg, i)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case ShapeInt:
		n, err := argInt(msg, i)
		if err != nil {
			return Value{}, err
		}
		return Int(n), nil
	default:
		b, err := argBool(msg, i)
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	}
}

func argFloat(msg *osc.Message, i int) (float32, error) {
	if len(msg.Arguments) <= i {
		return 0, fmt.Errorf("%s: missing argument %d", msg.Address, i)
	}
	f, ok := msg.Arguments[i].(float32)
	if !ok {
		return 0, fmt.Errorf("%s: argument %d is %T, want float32", msg.Address, i, msg.Arguments[i])
	}
	return f, nil
}

func argInt(msg *osc.Message, i int) (int32, error) {
	if len(msg.Arguments) <= i {
		return 0, fmt.Errorf("%s: missing argument %d", msg.Address, i)
	}
	n, ok := msg.Arguments[i].(int32)
	if !ok {
		return 0, fmt.Errorf("%s: argument %d is %T, want int32", msg.Address, i, msg.Arguments[i])
	}
	return n, nil
}

// argBool accepts the wire's 0/1 integers and the OSC T/F tags some
// controllers emit.
func argBool(msg *osc.Message, i int) (bool, error) {
	if len(msg.Arguments) <= i {
		return false, fmt.Errorf("%s: missing argument %d", msg.Address, i)
	}
	switch a := msg.Arguments[i].(type) {
	case int32:
		return a != 0, nil
	case bool:
		return a, nil
	}
	return false, fmt.Errorf("%s: argument %d is %T, want int32 or bool", msg.Address, i, msg.Arguments[i])
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
