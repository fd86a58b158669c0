package datetime_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/datetime"
)

func TestLoadZonesDedupesSortsAndIgnoresComments(t *testing.T) {
	input := strings.NewReader(`
# Comment
America/New_York
Europe/Paris
America/New_York

UTC
`)
	zones, err := datetime.LoadZones(input)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"America/New_York", "Europe/Paris", "UTC"}
	if diff := cmp.Diff(want, zones); diff != "" {
		t.Fatalf("zones mismatch (-want +got):\n%s", diff)
	}
}

func TestZonesAreLoadable(t *testing.T) {
	zones, err := datetime.Zones()
	if err != nil {
		t.Fatalf("zones: %v", err)
	}
	if len(zones) < 200 {
		t.Fatalf("expected a full zone list, got %d", len(zones))
	}
	for _, zone := range zones {
		if _, err := time.LoadLocation(zone); err != nil {
			t.Fatalf("zone %q is not loadable: %v", zone, err)
		}
	}
}

func TestSearchZones(t *testing.T) {
	zones := []string{"America/New_York", "Europe/Paris", "Europe/Prague", "UTC"}

	tests := []struct {
		query string
		limit int
		want  []string
	}{
		{query: "eUrOpE/p", limit: 10, want: []string{"Europe/Paris", "Europe/Prague"}},
		{query: "paris", limit: 10, want: []string{"Europe/Paris"}},
		{query: "u", limit: 10, want: []string{"UTC", "Europe/Paris", "Europe/Prague"}},
		{query: "e", limit: 1, want: []string{"Europe/Paris"}},
		{query: " ", limit: 10, want: nil},
		{query: "paris", limit: 0, want: nil},
	}
	for _, tt := range tests {
		got := datetime.SearchZones(zones, tt.query, tt.limit)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("search %q (-want +got):\n%s", tt.query, diff)
		}
	}
}
