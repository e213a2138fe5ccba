package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestUnitPriceCents(t *testing.T) {
	cases := []struct {
		name    string
		pkg     int64
		weight  float64
		want    int64
	}{
		{"weight one", 550, 1, 550},
		{"divides by weight", 1000, 2, 500},
		{"half-up rounding", 1001, 2, 501},
		{"fractional weight clamps to one", 300, 0.5, 300},
		{"zero weight clamps to one", 300, 0, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := UnitPriceCents(tc.pkg, tc.weight); got != tc.want {
				t.Errorf("UnitPriceCents(%d, %v) = %d, want %d", tc.pkg, tc.weight, got, tc.want)
			}
		})
	}
}

func TestLineTotalCents(t *testing.T) {
	cases := []struct {
		name   string
		unit   int64
		weight float64
		want   int64
	}{
		{"whole weight", 550, 2, 1100},
		{"fractional weight", 1000, 1.5, 1500},
		{"rounds half up", 333, 1.5, 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LineTotalCents(tc.unit, tc.weight); got != tc.want {
				t.Errorf("LineTotalCents(%d, %v) = %d, want %d", tc.unit, tc.weight, got, tc.want)
			}
		})
	}
}
