package coerce

import (
	"math"
	"testing"
)

type level uint8

func TestInteger(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		wantNeg bool
		wantMag uint64
		wantOK  bool
	}{
		{"int", 5, false, 5, true},
		{"negative", -3, true, 3, true},
		{"min int64", int64(math.MinInt64), true, 1 << 63, true},
		{"max uint64", uint64(math.MaxUint64), false, math.MaxUint64, true},
		{"integral float", 42.0, false, 42, true},
		{"fractional float", 1.5, false, 0, false},
		{"nan", math.NaN(), false, 0, false},
		{"named type", level(7), false, 7, true},
		{"string", "1", false, 0, false},
		{"bool", true, false, 0, false},
		{"nil", nil, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			neg, mag, ok := Integer(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if neg != tt.wantNeg || mag != tt.wantMag {
				t.Errorf("Integer(%v) = (%v, %d), want (%v, %d)", tt.in, neg, mag, tt.wantNeg, tt.wantMag)
			}
		})
	}
}

func TestToInt64(t *testing.T) {
	if v, ok := ToInt64(uint64(math.MaxUint64)); ok {
		t.Errorf("ToInt64(MaxUint64) = %d, want failure", v)
	}
	if v, ok := ToInt64(int64(math.MinInt64)); !ok || v != math.MinInt64 {
		t.Errorf("ToInt64(MinInt64) = %d, %v", v, ok)
	}
}

func TestToUint64(t *testing.T) {
	if _, ok := ToUint64(-1); ok {
		t.Error("ToUint64(-1) should fail")
	}
	if v, ok := ToUint64(float64(255)); !ok || v != 255 {
		t.Errorf("ToUint64(255.0) = %d, %v", v, ok)
	}
}

func TestToBool(t *testing.T) {
	tests := []struct {
		in     any
		want   bool
		wantOK bool
	}{
		{true, true, true},
		{0, false, true},
		{1, true, true},
		{2, false, false},
		{"true", false, false},
	}
	for _, tt := range tests {
		got, ok := ToBool(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ToBool(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestToInt(t *testing.T) {
	if v, ok := ToInt("12"); !ok || v != 12 {
		t.Errorf("ToInt(\"12\") = %d, %v", v, ok)
	}
	if _, ok := ToInt("x"); ok {
		t.Error("ToInt(\"x\") should fail")
	}
}
