// Package geo turns reverse-geocoding payloads into display strings.
package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Geocoding is the nested address block of a location payload.
type Geocoding struct {
	Suburb       string `json:"suburb"`
	Town         string `json:"town"`
	City         string `json:"city"`
	Municipality string `json:"municipality"`
	Province     string `json:"province"`
	Country      string `json:"country"`
}

// Location is the payload sent in a `{key}_location` field.
type Location struct {
	Geocoding Geocoding `json:"geocoding"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// Parse decodes a location payload.
func Parse(raw string) (Location, error) {
	var loc Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return Location{}, fmt.Errorf("failed to parse location: %w", err)
	}
	return loc, nil
}

// Display joins the non-empty levels from most to least specific.
func (l Location) Display() string {
	levels := []string{
		l.Geocoding.Suburb,
		l.Geocoding.Town,
		l.Geocoding.City,
		l.Geocoding.Municipality,
		l.Geocoding.Province,
		l.Geocoding.Country,
	}

	parts := make([]string, 0, len(levels))
	for _, level := range levels {
		if level = strings.TrimSpace(level); level != "" {
			parts = append(parts, level)
		}
	}
	return strings.Join(parts, ", ")
}

// Coordinates formats the position as "lat,lon" with the shortest
// decimal representation of each value.
func (l Location) Coordinates() string {
	return formatFloat(l.Latitude) + "," + formatFloat(l.Longitude)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Normalize parses raw and returns its display string and coordinates.
func Normalize(raw string) (location, coordinates string, err error) {
	loc, err := Parse(raw)
	if err != nil {
		return "", "", err
	}
	return loc.Display(), loc.Coordinates(), nil
}
