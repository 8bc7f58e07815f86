package protocol

import "testing"

func TestTableAddresses(t *testing.T) {
	table := NewTable(Counts{Inputs: 4, Outputs: 4, Playbacks: 4})

	tc := []struct {
		desc Descriptor
		addr string
	}{
		{Descriptor{Type: Input, Index: 0, Param: Gain}, "/input/1/gain"},
		{Descriptor{Type: Output, Index: 2, Param: Gain}, "/output/3/volume"},
		{Descriptor{Type: Input, Index: 0, Param: StereoLink}, "/input/1/stereo"},
		{Descriptor{Type: Output, Index: 2, Param: StereoLink}, "/output/3/stereo"},
		{Descriptor{Type: Input, Index: 3, Param: MeterLevel}, "/input/4/level"},
		{Descriptor{Type: Playback, Index: 1, Param: MeterLevel}, "/playback/2/level"},
		{Descriptor{Type: Input, Index: 1, Param: PhantomPower}, "/input/2/48v"},
		{Descriptor{Type: Input, Index: 1, Param: HiZ}, "/input/2/hi-z"},
		{Descriptor{Type: Output, Index: 0, Param: Mute}, "/output/1/mute"},
		{Descriptor{Type: Input, Index: 2, Param: Phase}, "/input/3/phase"},
		{Descriptor{Type: Output, Index: 1, Param: EqEnable}, "/output/2/eq"},
		{Descriptor{Type: Input, Index: 0, Param: DynamicsEnable}, "/input/1/dynamics"},
		{Descriptor{Type: Input, Index: 0, Param: LowCutEnable}, "/input/1/lowcut"},
		{
			Descriptor{Param: MixSendVolume, Mix: MixSendKey{Output: 0, Source: Input, SourceIndex: 2}},
			"/mix/1/input/3",
		},
		{
			Descriptor{Param: MixSendPan, Mix: MixSendKey{Output: 3, Source: Playback, SourceIndex: 0}},
			"/mix/4/playback/1/pan",
		},
	}

	for _, tt := range tc {
		addr, err := table.Address(tt.desc)
		if err != nil {
			t.Errorf("Address(%v): %v", tt.desc, err)
			continue
		}
		if addr != tt.addr {
			t.Errorf("Address(%v) = %q, want %q", tt.desc, addr, tt.addr)
		}

		got, ok := table.Resolve(tt.addr)
		if !ok {
			t.Errorf("Resolve(%q) not found", tt.addr)
			continue
		}
		if got != tt.desc {
			t.Errorf("Resolve(%q) = %+v, want %+v", tt.addr, got, tt.desc)
		}
	}
}

func TestTableStereoOnlyOnEvenIndices(t *testing.T) {
	table := NewTable(Counts{Inputs: 4, Outputs: 4, Playbacks: 4})

	// Wire numbers are 1-based, so even indices appear as odd numbers.
	for _, addr := range []string{"/input/1/stereo", "/input/3/stereo", "/output/1/stereo"} {
		if _, ok := table.Resolve(addr); !ok {
			t.Errorf("Resolve(%q) should exist", addr)
		}
	}
	for _, addr := range []string{"/input/2/stereo", "/input/4/stereo", "/output/2/stereo"} {
		if _, ok := table.Resolve(addr); ok {
			t.Errorf("Resolve(%q) should not exist", addr)
		}
	}
}

func TestTableSize(t *testing.T) {
	table := NewTable(Counts{Inputs: 2, Outputs: 2, Playbacks: 2})

	// inputs: 10 kinds on even, 9 on odd = 19
	// outputs: 8 kinds on even, 7 on odd = 15
	// playbacks: 1 kind each = 2
	// mix: 2 outputs x (2 inputs + 2 playbacks) x {volume, pan} = 16
	want := 19 + 15 + 2 + 16
	if table.Size() != want {
		t.Errorf("Size() = %d, want %d", table.Size(), want)
	}
}

func TestTableResolveUnknown(t *testing.T) {
	table := NewTable(Counts{Inputs: 2, Outputs: 2, Playbacks: 2})

	for _, addr := range []string{
		"/input/3/gain",    // out of range
		"/input/1/volume",  // outputs spell it volume, inputs gain
		"/output/1/gain",   // and the other way around
		"/output/1/48v",    // inputs only
		"/playback/1/gain", // playbacks have meters only
		"/mix/3/input/1",   // output out of range
		"/bogus",
		"",
	} {
		if _, ok := table.Resolve(addr); ok {
			t.Errorf("Resolve(%q) should fail", addr)
		}
	}
}

func TestTableAddressFailsClosed(t *testing.T) {
	table := NewTable(Counts{Inputs: 2, Outputs: 2, Playbacks: 2})

	tc := []struct {
		name string
		desc Descriptor
	}{
		{"index out of range", Descriptor{Type: Input, Index: 2, Param: Gain}},
		{"negative index", Descriptor{Type: Input, Index: -1, Param: Gain}},
		{"stereo on odd index", Descriptor{Type: Input, Index: 1, Param: StereoLink}},
		{"48v on output", Descriptor{Type: Output, Index: 0, Param: PhantomPower}},
		{"gain on playback", Descriptor{Type: Playback, Index: 0, Param: Gain}},
		{"mix output out of range", Descriptor{Param: MixSendVolume, Mix: MixSendKey{Output: 2, Source: Input, SourceIndex: 0}}},
		{"mix source out of range", Descriptor{Param: MixSendPan, Mix: MixSendKey{Output: 0, Source: Playback, SourceIndex: 5}}},
		{"mix source must not be output", Descriptor{Param: MixSendVolume, Mix: MixSendKey{Output: 0, Source: Output, SourceIndex: 0}}},
	}

	for _, tt := range tc {
		if addr, err := table.Address(tt.desc); err == nil {
			t.Errorf("%s: Address(%v) = %q, want error", tt.name, tt.desc, addr)
		}
	}
}

func TestApplicable(t *testing.T) {
	if !Applicable(Input, PhantomPower) {
		t.Error("inputs have 48v")
	}
	if Applicable(Output, HiZ) {
		t.Error("outputs have no hi-z")
	}
	if !Applicable(Playback, MeterLevel) {
		t.Error("playbacks have meters")
	}
	if Applicable(Playback, Mute) {
		t.Error("playbacks have no mute")
	}
}
