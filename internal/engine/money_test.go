package engine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestToNative(t *testing.T) {
	tests := []struct {
		name    string
		display string
		rate    string
		want    string
	}{
		{"goal from docs", "500000", "146500", "3.413"},
		{"first milestone from docs", "300000", "146500", "2.0478"},
		{"second milestone from docs", "200000", "146500", "1.3652"},
		{"exact division", "200", "100", "2"},
		{"sub-unit amount", "50", "146500", "0.0003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToNative(dec(tt.display), dec(tt.rate))
			if !got.Equal(dec(tt.want)) {
				t.Errorf("ToNative(%s, %s) = %s, want %s", tt.display, tt.rate, got, tt.want)
			}
		})
	}
}

func TestToDisplay(t *testing.T) {
	// Round-trip bookkeeping at the locked rate.
	got := ToDisplay(dec("2.0478"), dec("146500"))
	if !got.Equal(dec("300002.70")) {
		t.Errorf("ToDisplay = %s, want 300002.70", got)
	}
}

func TestConversionIsDeterministic(t *testing.T) {
	a := ToNative(dec("500000"), dec("146500"))
	b := ToNative(dec("500000"), dec("146500"))
	if !a.Equal(b) {
		t.Errorf("same inputs produced %s and %s", a, b)
	}
}
