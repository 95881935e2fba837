// Package wkt parses the WKT geometry strings served by the open-data API.
// Only LINESTRING and MULTILINESTRING are expected; anything else the API
// could return for a rail route is a data error.
package wkt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ParseError reports malformed WKT input. A caller should abort only the
// route the input belongs to, not the whole batch.
type ParseError struct {
	Reason string
	Input  string
}

func (e *ParseError) Error() string {
	in := e.Input
	if len(in) > 64 {
		in = in[:64] + "..."
	}
	return fmt.Sprintf("malformed geometry: %s (input %q)", e.Reason, in)
}

// Parse decodes a WKT LINESTRING or MULTILINESTRING into raw coordinate
// segments. Each segment is an undirected lon/lat polyline; a single
// LINESTRING yields one segment. Z/M dimensions are ignored.
func Parse(s string) ([]orb.LineString, error) {
	trimmed := stripTokenSpace(strings.TrimSpace(s))
	upper := strings.ToUpper(trimmed)

	var multi bool
	switch {
	case strings.HasPrefix(upper, "MULTILINESTRING"):
		multi = true
	case strings.HasPrefix(upper, "LINESTRING"):
		multi = false
	default:
		return nil, &ParseError{Reason: "unsupported geometry kind", Input: s}
	}

	open := strings.Index(trimmed, "(")
	end := strings.LastIndex(trimmed, ")")
	if open < 0 || end < open || end != len(trimmed)-1 ||
		strings.Count(trimmed, "(") != strings.Count(trimmed, ")") {
		return nil, &ParseError{Reason: "unbalanced brackets", Input: s}
	}
	body := trimmed[open+1 : end]

	var parts []string
	if multi {
		// Whitespace around the brackets is already stripped, so the
		// segment boundary is always the "),(" token.
		body = strings.Trim(body, "() \t")
		parts = strings.Split(body, "),(")
	} else {
		if strings.ContainsAny(body, "()") {
			return nil, &ParseError{Reason: "nested brackets in LINESTRING", Input: s}
		}
		parts = []string{body}
	}

	segments := make([]orb.LineString, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, &ParseError{Reason: err.Error(), Input: s}
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// stripTokenSpace removes whitespace adjacent to brackets and commas, so
// exports writing "), (" or "LINESTRING (" parse the same as the compact
// form. Whitespace between coordinate fields is preserved.
func stripTokenSpace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			out = append(out, c)
			continue
		}
		j := i
		for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
			j++
		}
		prevToken := len(out) > 0 && isToken(out[len(out)-1])
		nextToken := j < len(s) && isToken(s[j])
		if !prevToken && !nextToken {
			out = append(out, ' ')
		}
		i = j - 1
	}
	return string(out)
}

func isToken(c byte) bool {
	return c == '(' || c == ')' || c == ','
}

func parseSegment(body string) (orb.LineString, error) {
	points := strings.Split(body, ",")
	if len(points) < 2 {
		return nil, fmt.Errorf("segment has %d points, need at least 2", len(points))
	}
	seg := make(orb.LineString, 0, len(points))
	for _, raw := range points {
		fields := strings.Fields(raw)
		if len(fields) < 2 {
			return nil, fmt.Errorf("point %q has fewer than 2 coordinates", strings.TrimSpace(raw))
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude %q", fields[0])
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude %q", fields[1])
		}
		// Extra fields are Z/M dimensions; drop them.
		seg = append(seg, orb.Point{lon, lat})
	}
	return seg, nil
}
