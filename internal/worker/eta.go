package worker

import (
	"regexp"
	"strconv"
)

// Three ETA formats an encoder may print, grounded on worker.py's parse_eta_seconds:
//   "ETA 01h23m45s", "ETA 23m45s", "ETA 45s"
var (
	etaHMS = regexp.MustCompile(`ETA\s+(\d+)h(\d+)m(\d+)s`)
	etaMS  = regexp.MustCompile(`ETA\s+(\d+)m(\d+)s`)
	etaS   = regexp.MustCompile(`ETA\s+(\d+)s`)
)

// ParseETASeconds extracts an ETA in seconds from a single line of encoder output, or (0, false)
// if the line does not contain a recognized ETA token.
func ParseETASeconds(line string) (int64, bool) {
	if m := etaHMS.FindStringSubmatch(line); m != nil {
		h, _ := strconv.ParseInt(m[1], 10, 64)
		mi, _ := strconv.ParseInt(m[2], 10, 64)
		s, _ := strconv.ParseInt(m[3], 10, 64)
		return h*3600 + mi*60 + s, true
	}
	if m := etaMS.FindStringSubmatch(line); m != nil {
		mi, _ := strconv.ParseInt(m[1], 10, 64)
		s, _ := strconv.ParseInt(m[2], 10, 64)
		return mi*60 + s, true
	}
	if m := etaS.FindStringSubmatch(line); m != nil {
		s, _ := strconv.ParseInt(m[1], 10, 64)
		return s, true
	}
	return 0, false
}

// progressPct matches the encoder's "Encoding N%" style progress line.
var progressPct = regexp.MustCompile(`Encoding\s+(\d+(?:\.\d+)?)\s*%`)

// ParseProgressPct extracts a percentage from a single line of encoder output, or (0, false).
func ParseProgressPct(line string) (float64, bool) {
	m := progressPct.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}
