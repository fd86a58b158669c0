package datetime

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

//go:embed data/iana_timezones.txt
var dataFS embed.FS

const zoneListPath = "data/iana_timezones.txt"

var (
	zonesOnce sync.Once
	zoneList  []string
	zonesErr  error
)

// Zones returns the sorted IANA zone names format_date accepts as its
// timezone argument. The slice is a copy.
func Zones() ([]string, error) {
	zonesOnce.Do(func() {
		f, err := dataFS.Open(zoneListPath)
		if err != nil {
			zonesErr = err
			return
		}
		defer func() { _ = f.Close() }()
		zoneList, zonesErr = LoadZones(f)
	})
	if zonesErr != nil {
		return nil, zonesErr
	}
	return append([]string(nil), zoneList...), nil
}

// LoadZones reads one zone per line, skipping blanks, comments and
// duplicates, and returns them sorted.
func LoadZones(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("datetime: missing zone reader")
	}
	scanner := bufio.NewScanner(r)
	zones := make([]string, 0, 512)
	seen := map[string]struct{}{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		zones = append(zones, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Strings(zones)
	return zones, nil
}

// SearchZones returns up to limit zones containing query, case-insensitively.
// Prefix matches sort first. An empty query or non-positive limit matches
// nothing.
func SearchZones(zones []string, query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	type match struct {
		name   string
		prefix bool
	}
	var matches []match
	for _, zone := range zones {
		lower := strings.ToLower(zone)
		if !strings.Contains(lower, q) {
			continue
		}
		// "paris" is a prefix of the city part of Europe/Paris.
		city := lower[strings.LastIndexByte(lower, '/')+1:]
		matches = append(matches, match{
			name:   zone,
			prefix: strings.HasPrefix(lower, q) || strings.HasPrefix(city, q),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].prefix != matches[j].prefix {
			return matches[i].prefix
		}
		return matches[i].name < matches[j].name
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}
