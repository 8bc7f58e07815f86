package protocol

import (
	"errors"
	"testing"

	"github.com/chabad360/go-osc/osc"
)

func testCodec() (*Table, *Codec) {
	table := NewTable(Counts{Inputs: 4, Outputs: 4, Playbacks: 4})
	return table, NewCodec(table)
}

// sampleValue returns one representative wire argument per shape.
func sampleValue(k ParameterKind) interface{} {
	switch k.Shape() {
	case ShapeFloat:
		return float32(3.5)
	case ShapeInt:
		return int32(-42)
	default:
		return int32(1)
	}
}

func TestDecodeRoundTripEveryAddress(t *testing.T) {
	table, codec := testCodec()

	table.ForEach(func(addr string, d Descriptor) {
		msg := osc.NewMessage(addr, sampleValue(d.Param))
		data, err := msg.MarshalBinary()
		if err != nil {
			t.Fatalf("%s: marshal: %v", addr, err)
		}

		updates, err := codec.Decode(data)
		if err != nil {
			t.Errorf("%s: decode: %v", addr, err)
			return
		}
		if len(updates) != 1 {
			t.Errorf("%s: got %d updates, want 1", addr, len(updates))
			return
		}
		u := updates[0]
		if u.Desc != d {
			t.Errorf("%s: descriptor = %+v, want %+v", addr, u.Desc, d)
		}

		switch d.Param.Shape() {
		case ShapeFloat:
			if u.Value.Float() != 3.5 {
				t.Errorf("%s: value = %v, want 3.5", addr, u.Value)
			}
		case ShapeInt:
			if u.Value.Int() != -42 {
				t.Errorf("%s: value = %v, want -42", addr, u.Value)
			}
		default:
			if !u.Value.Bool() {
				t.Errorf("%s: value = %v, want true", addr, u.Value)
			}
		}
	})
}

func TestEncodeMatchesTableAddress(t *testing.T) {
	table, codec := testCodec()

	table.ForEach(func(addr string, d Descriptor) {
		if d.Param.IsMixSend() || d.Param == MeterLevel {
			return
		}

		var v Value
		switch d.Param.Shape() {
		case ShapeFloat:
			v = Float(3.5)
		case ShapeInt:
			v = Int(-42)
		default:
			v = Bool(true)
		}

		msg, err := codec.Encode(d, v)
		if err != nil {
			t.Errorf("%s: encode: %v", addr, err)
			return
		}
		if msg.Address != addr {
			t.Errorf("encode %+v: address = %q, want %q", d, msg.Address, addr)
		}
		if len(msg.Arguments) != 1 {
			t.Errorf("%s: got %d arguments, want 1", addr, len(msg.Arguments))
		}
	})
}

func TestEncodeBoolAsInt(t *testing.T) {
	_, codec := testCodec()

	msg, err := codec.Encode(Descriptor{Type: Input, Index: 0, Param: Mute}, Bool(true))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := msg.Arguments[0].(int32); !ok || got != 1 {
		t.Errorf("mute true encodes as %v, want int32 1", msg.Arguments[0])
	}

	msg, err = codec.Encode(Descriptor{Type: Input, Index: 0, Param: Mute}, Bool(false))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := msg.Arguments[0].(int32); !ok || got != 0 {
		t.Errorf("mute false encodes as %v, want int32 0", msg.Arguments[0])
	}
}

func TestEncodeShapeMismatch(t *testing.T) {
	_, codec := testCodec()

	if _, err := codec.Encode(Descriptor{Type: Input, Index: 0, Param: Gain}, Int(12)); err == nil {
		t.Error("int into gain should fail")
	}
	if _, err := codec.Encode(Descriptor{Type: Input, Index: 0, Param: Mute}, Float(1)); err == nil {
		t.Error("float into mute should fail")
	}
}

func TestEncodeMixSet(t *testing.T) {
	_, codec := testCodec()

	key := MixSendKey{Output: 1, Source: Playback, SourceIndex: 3}
	msg, err := codec.EncodeMixSet(key, -12.5, 40)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Address != "/mix/2/playback/4" {
		t.Errorf("address = %q, want /mix/2/playback/4", msg.Address)
	}
	if len(msg.Arguments) != 2 {
		t.Fatalf("got %d arguments, want 2", len(msg.Arguments))
	}
	if v := msg.Arguments[0].(float32); v != -12.5 {
		t.Errorf("volume = %v, want -12.5", v)
	}
	if p := msg.Arguments[1].(int32); p != 40 {
		t.Errorf("pan = %v, want 40", p)
	}
}

func TestEncodeRejectsMixKinds(t *testing.T) {
	_, codec := testCodec()

	d := Descriptor{Param: MixSendVolume, Mix: MixSendKey{Output: 0, Source: Input, SourceIndex: 0}}
	if _, err := codec.Encode(d, Float(0)); err == nil {
		t.Error("mix kinds must go through EncodeMixSet")
	}
}

func TestDecodeCombinedMixMessage(t *testing.T) {
	_, codec := testCodec()

	msg := osc.NewMessage("/mix/1/input/2", float32(-20.0), int32(-75))
	data, _ := msg.MarshalBinary()

	updates, err := codec.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}

	key := MixSendKey{Output: 0, Source: Input, SourceIndex: 1}
	if updates[0].Desc.Param != MixSendVolume || updates[0].Desc.Mix != key {
		t.Errorf("first update = %+v, want volume for %v", updates[0].Desc, key)
	}
	if updates[0].Value.Float() != -20.0 {
		t.Errorf("volume = %v, want -20", updates[0].Value)
	}
	if updates[1].Desc.Param != MixSendPan || updates[1].Desc.Mix != key {
		t.Errorf("second update = %+v, want pan for %v", updates[1].Desc, key)
	}
	if updates[1].Value.Int() != -75 {
		t.Errorf("pan = %v, want -75", updates[1].Value)
	}
}

func TestDecodeMeterExtraArguments(t *testing.T) {
	_, codec := testCodec()

	// Some firmware appends more floats and a trailing int; only the first
	// float is the level.
	msg := osc.NewMessage("/input/1/level", float32(-18.5), float32(-20.0), int32(3))
	data, _ := msg.MarshalBinary()

	updates, err := codec.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	if updates[0].Value.Float() != -18.5 {
		t.Errorf("level = %v, want -18.5", updates[0].Value)
	}
}

func TestDecodeBoolForms(t *testing.T) {
	_, codec := testCodec()

	for _, arg := range []interface{}{int32(1), true} {
		msg := osc.NewMessage("/input/1/mute", arg)
		data, _ := msg.MarshalBinary()

		updates, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("%v: %v", arg, err)
		}
		if !updates[0].Value.Bool() {
			t.Errorf("%v should decode as true", arg)
		}
	}

	msg := osc.NewMessage("/input/1/mute", int32(0))
	data, _ := msg.MarshalBinary()
	updates, err := codec.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if updates[0].Value.Bool() {
		t.Error("0 should decode as false")
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, codec := testCodec()

	tc := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not an osc message")},
		{"no arguments", mustMarshal(t, osc.NewMessage("/input/1/gain"))},
		{"wrong shape", mustMarshal(t, osc.NewMessage("/input/1/gain", int32(5)))},
		{"pan as float", mustMarshal(t, osc.NewMessage("/mix/1/input/1/pan", float32(0.5)))},
		{"string mute", mustMarshal(t, osc.NewMessage("/input/1/mute", "on"))},
	}

	for _, tt := range tc {
		_, err := codec.Decode(tt.data)
		var malformed *MalformedMessageError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: err = %v, want MalformedMessageError", tt.name, err)
		}
	}
}

func TestDecodeUnknownAddress(t *testing.T) {
	_, codec := testCodec()

	msg := osc.NewMessage("/input/99/gain", float32(1))
	data, _ := msg.MarshalBinary()

	_, err := codec.Decode(data)
	var unknown *UnknownAddressError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownAddressError", err)
	}
	if unknown.Address != "/input/99/gain" {
		t.Errorf("address = %q", unknown.Address)
	}
}

func TestEncodeRefresh(t *testing.T) {
	_, codec := testCodec()

	msg := codec.EncodeRefresh()
	if msg.Address != RefreshAddress {
		t.Errorf("address = %q, want %q", msg.Address, RefreshAddress)
	}
	if len(msg.Arguments) != 0 {
		t.Errorf("refresh carries no arguments, got %d", len(msg.Arguments))
	}
}

func mustMarshal(t *testing.T, msg *osc.Message) []byte {
	t.Helper()
	data, err := msg.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return data
}
