package vectorstore

import "testing"

func TestFilterMatches_Equality(t *testing.T) {
	payload := map[string]interface{}{"agent": "cara", "type": "note"}

	if !(Filter{"agent": "cara"}).Matches(payload) {
		t.Error("Expected exact string match")
	}
	if (Filter{"agent": "finn"}).Matches(payload) {
		t.Error("Expected mismatched value to fail")
	}
	if (Filter{"missing": "x"}).Matches(payload) {
		t.Error("Expected missing field to fail")
	}
	if !(Filter{"agent": "cara", "type": "note"}).Matches(payload) {
		t.Error("Expected conjunctive match across fields")
	}
	if (Filter{"agent": "cara", "type": "task"}).Matches(payload) {
		t.Error("Expected one failing condition to fail the whole filter")
	}
}

func TestFilterMatches_NumericCoercion(t *testing.T) {
	// JSON round-trips integers as float64; the filter side may still hold
	// an int.
	payload := map[string]interface{}{"priority": float64(5)}

	if !(Filter{"priority": 5}).Matches(payload) {
		t.Error("Expected int 5 to match float64 5")
	}
	if !(Filter{"priority": float64(5)}).Matches(payload) {
		t.Error("Expected float64 5 to match")
	}
	if (Filter{"priority": 6}).Matches(payload) {
		t.Error("Expected different numbers to fail")
	}
}

func TestFilterMatches_Range(t *testing.T) {
	payload := map[string]interface{}{"priority": float64(5)}
	lo, hi := 3.0, 7.0

	cases := []struct {
		name string
		r    Range
		want bool
	}{
		{"inside both bounds", Range{GTE: &lo, LTE: &hi}, true},
		{"open upper", Range{GTE: &lo}, true},
		{"open lower", Range{LTE: &hi}, true},
		{"below lower", Range{GTE: &hi}, false},
		{"above upper", Range{LTE: &lo}, false},
		{"unbounded", Range{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (Filter{"priority": tc.r}).Matches(payload); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterMatches_RangeBoundsInclusive(t *testing.T) {
	payload := map[string]interface{}{"priority": float64(5)}
	five := 5.0

	if !(Filter{"priority": Range{GTE: &five}}).Matches(payload) {
		t.Error("GTE bound should be inclusive")
	}
	if !(Filter{"priority": Range{LTE: &five}}).Matches(payload) {
		t.Error("LTE bound should be inclusive")
	}
}

func TestFilterMatches_RangeOnNonNumeric(t *testing.T) {
	payload := map[string]interface{}{"priority": "high"}
	lo := 1.0

	if (Filter{"priority": Range{GTE: &lo}}).Matches(payload) {
		t.Error("A range condition on a non-numeric value should fail")
	}
}

func TestFilterMatches_EmptyFilter(t *testing.T) {
	if !(Filter{}).Matches(map[string]interface{}{"anything": 1}) {
		t.Error("An empty filter should match everything")
	}
	if !(Filter{}).Matches(nil) {
		t.Error("An empty filter should match a nil payload")
	}
}
