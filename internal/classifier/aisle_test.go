package classifier

import "testing"

func TestFallbackAisle(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"milk", "Dairy"},
		{"whole milk", "Dairy"},
		{"frozen pizza", "Frozen Foods"},
		{"ice cream", "Frozen Foods"},
		{"london broil", "Meat"},
		{"orange juice", "Beverages"},
		{"mystery item", ""},
	}
	for _, tt := range tests {
		if got := fallbackAisle(tt.name); got != tt.want {
			t.Errorf("fallbackAisle(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
