package inspector

import "testing"

func TestParsePort(t *testing.T) {
	cases := []struct {
		raw  string
		want uint16
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"", 0},
		{"0", 0},
		{"65536", 0},
		{"70000", 0},
		{"123456789", 0},
		{"80a", 0},
		{"-80", 0},
		{" 80", 0},
	}
	for _, tc := range cases {
		if got := parsePort(tc.raw); got != tc.want {
			t.Errorf("parsePort(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
