package app

import (
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"stayfinder/internal/domain"
)

/********** alias registries (single source of truth) **********/

// propertyAliases lists accepted header names per catalog column, preferred first.
// Headers are lowercased and trimmed before lookup.
var propertyAliases = map[string][]string{
	"property_id":   {"property_id", "id", "listing_id"},
	"location":      {"location", "city", "destination", "region"},
	"environment":   {"environment", "env", "setting"},
	"property_type": {"property_type", "type", "ptype", "kind"},
	"nightly_price": {"nightly_price", "price", "price_per_night", "rate"},
	"features":      {"features", "amenities", "facilities"},
	"tags":          {"tags", "labels", "keywords"},
	"min_guests":    {"min_guests", "capacity_min", "guests_min"},
	"max_guests":    {"max_guests", "capacity_max", "guests_max", "capacity", "sleeps"},
	"description":   {"description", "summary", "blurb"},
}

/********** tiny helpers **********/

// firstNonEmpty returns the first non-blank value for a named alias set.
func firstNonEmpty(rec map[string]string, key string) string {
	for _, h := range propertyAliases[key] {
		if v := strings.TrimSpace(rec[h]); v != "" {
			return v
		}
	}
	return ""
}

// parseFloatFlexible accepts "120", "120.5", "1,5", "1,250", "1,250.00", "$1,250", " 99 € ".
// A comma is a thousands separator when a dot is present or every group after
// it has exactly three digits; otherwise a single comma is the decimal mark.
// Anything unparsable, NaN, Inf or negative becomes 0.
func parseFloatFlexible(s string) float64 {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == ',':
			return r
		}
		return -1
	}, s)
	if s == "" {
		return 0
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || thousandsGrouped(s) {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// thousandsGrouped reports whether s looks like "1,250" or "12,500,000".
func thousandsGrouped(s string) bool {
	parts := strings.Split(s, ",")
	if strings.TrimPrefix(parts[0], "-") == "" {
		return false
	}
	for _, g := range parts[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// parseIntFlexible accepts integers and integral floats ("4", "4.0").
func parseIntFlexible(s string) int {
	f := parseFloatFlexible(s)
	if f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// normalizeHeader lowercases a header and strips a UTF-8 BOM.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

/********** property mapper **********/

// mapProperty turns one CSV record into a Property. Missing columns become
// empty or zero; a missing id falls back to the 1-based row number so every
// row keeps a stable identifier.
func mapProperty(rec map[string]string, row int) domain.Property {
	p := domain.Property{
		ID:           firstNonEmpty(rec, "property_id"),
		Location:     firstNonEmpty(rec, "location"),
		Environment:  firstNonEmpty(rec, "environment"),
		PropertyType: firstNonEmpty(rec, "property_type"),
		NightlyPrice: parseFloatFlexible(firstNonEmpty(rec, "nightly_price")),
		Features:     firstNonEmpty(rec, "features"),
		Tags:         firstNonEmpty(rec, "tags"),
		MinGuests:    parseIntFlexible(firstNonEmpty(rec, "min_guests")),
		MaxGuests:    parseIntFlexible(firstNonEmpty(rec, "max_guests")),
		Description:  firstNonEmpty(rec, "description"),
	}
	if p.ID == "" {
		p.ID = strconv.Itoa(row)
	}
	if p.MinGuests > 0 && p.MaxGuests > 0 && p.MinGuests > p.MaxGuests {
		log.Debug().Str("property_id", p.ID).Int("min", p.MinGuests).Int("max", p.MaxGuests).
			Msg("swapping inverted guest bounds")
		p.MinGuests, p.MaxGuests = p.MaxGuests, p.MinGuests
	}
	return p
}

// mapProperties maps records in order; on duplicate ids the last row wins
// but keeps the position of the first.
func mapProperties(recs []map[string]string) []domain.Property {
	out := make([]domain.Property, 0, len(recs))
	pos := make(map[string]int, len(recs))
	for i, rec := range recs {
		norm := make(map[string]string, len(rec))
		for k, v := range rec {
			norm[normalizeHeader(k)] = v
		}
		p := mapProperty(norm, i+1)
		if j, dup := pos[p.ID]; dup {
			log.Warn().Str("property_id", p.ID).Int("row", i+1).Msg("duplicate property id, keeping last row")
			out[j] = p
			continue
		}
		pos[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
