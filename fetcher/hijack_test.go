package fetcher

import "testing"

func TestIsTrackerDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"ad.doubleclick.net", true},
		{"pagead2.googlesyndication.com", true},
		{"www.google-analytics.com", true},
		{"example.com", false},
		{"notdoubleclick.net", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isTrackerDomain(tt.host); got != tt.want {
			t.Errorf("isTrackerDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
