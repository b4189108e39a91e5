// Package region maps country names to ISO 3166-1 alpha-2 codes and a
// representative IANA timezone. The table ships embedded in the binary
// and is parsed once on first use.
package region

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"
)

//go:embed regions.json
var regionsJSON []byte

// Info is one country's regional metadata.
type Info struct {
	Country  string `json:"country"`
	ISOCode  string `json:"iso_code"`
	Timezone string `json:"timezone"`
}

var (
	loadOnce sync.Once
	byName   map[string]Info
	byCode   map[string]Info
	loadErr  error
)

func load() {
	var entries []Info
	if err := json.Unmarshal(regionsJSON, &entries); err != nil {
		loadErr = fmt.Errorf("region: parse embedded table: %w", err)
		return
	}
	byName = make(map[string]Info, len(entries))
	byCode = make(map[string]Info, len(entries))
	for _, entry := range entries {
		byName[normalize(entry.Country)] = entry
		byCode[strings.ToUpper(entry.ISOCode)] = entry
	}
}

func normalize(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}

// Lookup resolves a country by name or by ISO alpha-2 code.
func Lookup(country string) (Info, bool) {
	loadOnce.Do(load)
	if loadErr != nil {
		return Info{}, false
	}
	key := strings.TrimSpace(country)
	if len(key) == 2 {
		if info, ok := byCode[strings.ToUpper(key)]; ok {
			return info, true
		}
	}
	info, ok := byName[normalize(key)]
	return info, ok
}

// ISOCode returns the alpha-2 code for a country name, or "" when the
// country is not in the table.
func ISOCode(country string) string {
	info, ok := Lookup(country)
	if !ok {
		return ""
	}
	return info.ISOCode
}

// Timezone returns a representative IANA timezone for a country, or ""
// when the country is not in the table.
func Timezone(country string) string {
	info, ok := Lookup(country)
	if !ok {
		return ""
	}
	return info.Timezone
}
