package features

import (
	"math"
	"testing"
)

func TestFeatureVector_SliceOrder(t *testing.T) {
	v := FeatureVector{N: 1, P: 2, K: 3, Temperature: 4, Humidity: 5, PH: 6, Rainfall: 7}
	got := v.Slice()
	if len(got) != Width {
		t.Fatalf("expected %d values, got %d", Width, len(got))
	}
	for i, x := range got {
		if x != float64(i+1) {
			t.Errorf("feature %s: expected %v, got %v", Names[i], float64(i+1), x)
		}
	}
}

func TestFromSlice(t *testing.T) {
	x := []float64{90, 42, 43, 20.8, 82, 6.5, 202.9}
	v, err := FromSlice(x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Temperature != 20.8 || v.Rainfall != 202.9 {
		t.Errorf("unexpected vector %+v", v)
	}

	for _, bad := range [][]float64{nil, x[:6], append(append([]float64(nil), x...), 1)} {
		if _, err := FromSlice(bad); err == nil {
			t.Errorf("expected error for %d values", len(bad))
		}
	}
}

func TestFeatureVector_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		v       FeatureVector
		wantErr bool
	}{
		{"finite", FeatureVector{N: 1, PH: 7}, false},
		{"zero", FeatureVector{}, false},
		{"nan", FeatureVector{Humidity: math.NaN()}, true},
		{"+inf", FeatureVector{Rainfall: math.Inf(1)}, true},
		{"-inf", FeatureVector{N: math.Inf(-1)}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.v.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
