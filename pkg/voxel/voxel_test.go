package voxel

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestFloorPos(t *testing.T) {
	cases := []struct {
		in   v3.Vec
		want Pos
	}{
		{v3.Vec{X: 0.5, Y: 1.5, Z: 2.99}, Pos{0, 1, 2}},
		{v3.Vec{X: -0.5, Y: -1, Z: -1.01}, Pos{-1, -1, -2}},
		{v3.Vec{}, Pos{}},
	}
	for _, c := range cases {
		if got := FloorPos(c.in); got != c.want {
			t.Errorf("FloorPos(%v) = %v, expected %v", c.in, got, c.want)
		}
	}
}

func TestValueVariants(t *testing.T) {
	f := Float(-1.5)
	if !f.IsFloat() {
		t.Fatal("Float value should report IsFloat")
	}
	if f.Float() != -1.5 {
		t.Errorf("Float() = %f, expected -1.5", f.Float())
	}
	if f.Int() != 0 {
		t.Errorf("negative float should read as integer 0, got %d", f.Int())
	}

	i := Int(42)
	if i.IsFloat() {
		t.Fatal("Int value should not report IsFloat")
	}
	if i.Float() != 42 {
		t.Errorf("Float() of Int(42) = %f", i.Float())
	}

	var zero Value
	if zero.IsFloat() || zero.Int() != 0 {
		t.Errorf("zero Value should be integer 0, got %v", zero)
	}
}

func TestValueBitsRoundTrip(t *testing.T) {
	sdf := Float(-0.25)
	got := FromBits(ChannelSDF, sdf.Bits(ChannelSDF))
	if got.Float() != -0.25 {
		t.Errorf("sdf round trip = %v", got)
	}
	if sdf.Bits(ChannelSDF) != math.Float64bits(-0.25) {
		t.Error("sdf bits should be IEEE bits")
	}

	typ := Int(7)
	if FromBits(ChannelType, typ.Bits(ChannelType)).Int() != 7 {
		t.Error("type channel round trip failed")
	}
}

func TestParseChannel(t *testing.T) {
	for c := Channel(0); c < ChannelCount; c++ {
		got, err := ParseChannel(c.String())
		if err != nil {
			t.Fatalf("ParseChannel(%q): %v", c.String(), err)
		}
		if got != c {
			t.Errorf("ParseChannel(%q) = %v", c.String(), got)
		}
	}
	if _, err := ParseChannel("nope"); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestEmptyVolume(t *testing.T) {
	v := Empty.GetVoxel(Pos{1, 2, 3}, ChannelSDF, Float(SDFFarOutside))
	if v.Float() != SDFFarOutside {
		t.Errorf("Empty volume should return the default, got %v", v)
	}
}
