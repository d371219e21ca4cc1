package watch

import (
	"fmt"
	"strings"
)

// Region is a language-specific Wikipedia deployment.
// The set is closed; there is no runtime registration.
type Region int

const (
	RegionEnglish Region = iota
	RegionNederlands
	RegionDeutsch
	RegionFrancais
	RegionEspanol
)

type regionInfo struct {
	code string
	name string
}

var regionTable = [...]regionInfo{
	RegionEnglish:    {code: "en", name: "English"},
	RegionNederlands: {code: "nl", name: "Nederlands"},
	RegionDeutsch:    {code: "de", name: "Deutsch"},
	RegionFrancais:   {code: "fr", name: "Français"},
	RegionEspanol:    {code: "es", name: "Español"},
}

// Regions returns every supported region in display order.
func Regions() []Region {
	out := make([]Region, len(regionTable))
	for i := range regionTable {
		out[i] = Region(i)
	}
	return out
}

// Valid reports whether r is one of the supported regions.
func (r Region) Valid() bool {
	return r >= 0 && int(r) < len(regionTable)
}

// Code returns the locale code, e.g. "en".
func (r Region) Code() string {
	if !r.Valid() {
		return ""
	}
	return regionTable[r].code
}

// Name returns the display name, e.g. "Nederlands".
func (r Region) Name() string {
	if !r.Valid() {
		return ""
	}
	return regionTable[r].name
}

// Host returns the region's Wikipedia host name.
func (r Region) Host() string {
	return r.Code() + ".wikipedia.org"
}

func (r Region) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Region(%d)", int(r))
	}
	return r.Code()
}

// ParseRegion accepts a locale code or a display name, case-insensitively.
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	for i, info := range regionTable {
		if strings.EqualFold(s, info.code) || strings.EqualFold(s, info.name) {
			return Region(i), nil
		}
	}
	return 0, fmt.Errorf("unknown wiki region: %q", s)
}

// MarshalText encodes the region as its locale code.
func (r Region) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid wiki region: %d", int(r))
	}
	return []byte(r.Code()), nil
}

func (r *Region) UnmarshalText(text []byte) error {
	parsed, err := ParseRegion(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
