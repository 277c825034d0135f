package render

import "golang.org/x/text/unicode/bidi"

// ContainsRTL reports whether s carries any right-to-left characters.
// Capture backends use this to decide which overlays need explicit
// direction and bidi-override styling.
func ContainsRTL(s string) bool {
	for _, r := range s {
		p, _ := bidi.LookupRune(r)
		switch p.Class() {
		case bidi.R, bidi.AL, bidi.RLO, bidi.RLE, bidi.RLI:
			return true
		}
	}
	return false
}
