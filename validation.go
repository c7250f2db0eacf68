package main

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/notam-cache/notam-cache/notam"
)

// numberPattern is the accepted numeric form for coordinates and
// radius: optional sign, optional fractional part.
var numberPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// Radius bounds differ between the provider variants.
const (
	maxRadiusEnvelope  = 100
	maxRadiusPaginated = 500
	maxPageSize        = 1000
)

// parseQuery validates the query parameters and returns the query the
// core operates on. It runs before any cache or network access; inputs
// that reach the core are always well-formed.
func parseQuery(r *http.Request, variant string) (notam.Query, error) {
	var q notam.Query

	lon, err := numericParam(r, "longitude", "locationLongitude", "lon")
	if err != nil {
		return q, err
	}
	if v, _ := strconv.ParseFloat(lon, 64); v < -180 || v > 180 {
		return q, fmt.Errorf("%w: longitude out of range: %s", notam.ErrValidation, lon)
	}

	lat, err := numericParam(r, "latitude", "locationLatitude", "lat")
	if err != nil {
		return q, err
	}
	if v, _ := strconv.ParseFloat(lat, 64); v < -90 || v > 90 {
		return q, fmt.Errorf("%w: latitude out of range: %s", notam.ErrValidation, lat)
	}

	radius, err := numericParam(r, "radius", "locationRadius", "radius")
	if err != nil {
		return q, err
	}
	if err := validateRadius(radius, variant); err != nil {
		return q, err
	}

	pageSize := 0
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize <= 0 || pageSize > maxPageSize {
			return q, fmt.Errorf("%w: pageSize must be an integer in (0,%d]: %s", notam.ErrValidation, maxPageSize, raw)
		}
	}

	q.Longitude = lon
	q.Latitude = lat
	q.Radius = radius
	q.PageSize = pageSize
	return q, nil
}

// numericParam reads the first non-empty parameter among the given
// aliases and checks it against the numeric pattern.
func numericParam(r *http.Request, name string, aliases ...string) (string, error) {
	for _, alias := range aliases {
		raw := r.URL.Query().Get(alias)
		if raw == "" {
			continue
		}
		if !numberPattern.MatchString(raw) {
			return "", fmt.Errorf("%w: %s is not numeric: %s", notam.ErrValidation, name, raw)
		}
		return raw, nil
	}
	return "", fmt.Errorf("%w: missing %s", notam.ErrValidation, name)
}

func validateRadius(radius, variant string) error {
	v, _ := strconv.ParseFloat(radius, 64)
	switch variant {
	case VariantPaginated:
		// the legacy API only accepts whole numbers
		if strings.Contains(radius, ".") {
			return fmt.Errorf("%w: radius must be an integer: %s", notam.ErrValidation, radius)
		}
		if v <= 0 || v >= maxRadiusPaginated {
			return fmt.Errorf("%w: radius out of range (0,%d): %s", notam.ErrValidation, maxRadiusPaginated, radius)
		}
	default:
		if v < 0 || v > maxRadiusEnvelope {
			return fmt.Errorf("%w: radius out of range [0,%d]: %s", notam.ErrValidation, maxRadiusEnvelope, radius)
		}
	}
	return nil
}
