package bridge

import (
	"testing"

	"oscmix2mqtt/internal/protocol"
)

func TestParseValue(t *testing.T) {
	tc := []struct {
		name    string
		payload string
		shape   protocol.Shape
		want    protocol.Value
		wantErr bool
	}{
		{"float", `{"value": 12.5}`, protocol.ShapeFloat, protocol.Float(12.5), false},
		{"int", `{"value": -30}`, protocol.ShapeInt, protocol.Int(-30), false},
		{"bool true", `{"value": true}`, protocol.ShapeBool, protocol.Bool(true), false},
		{"bool as one", `{"value": 1}`, protocol.ShapeBool, protocol.Bool(true), false},
		{"bool as zero", `{"value": 0}`, protocol.ShapeBool, protocol.Bool(false), false},
		{"string into float", `{"value": "loud"}`, protocol.ShapeFloat, protocol.Value{}, true},
		{"string into bool", `{"value": "on"}`, protocol.ShapeBool, protocol.Value{}, true},
		{"not json", `12.5`, protocol.ShapeFloat, protocol.Value{}, true},
	}

	for _, tt := range tc {
		got, err := parseValue([]byte(tt.payload), tt.shape)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("%s: value = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScalar(t *testing.T) {
	if v := scalar(protocol.Float(1.5)); v.(float32) != 1.5 {
		t.Errorf("float scalar = %v", v)
	}
	if v := scalar(protocol.Int(-7)); v.(int32) != -7 {
		t.Errorf("int scalar = %v", v)
	}
	if v := scalar(protocol.Bool(true)); v.(bool) != true {
		t.Errorf("bool scalar = %v", v)
	}
}
