// Package attrs provides helpers for audit payload attributes.
package attrs

// phiKeys lists attribute keys whose values are protected health information.
// Audit payloads carry structural metadata only; Sanitize is the shared helper
// callers use to uphold that contract before constructing an event.
var phiKeys = map[string]struct{}{
	"given_name":  {},
	"family_name": {},
	"birth_date":  {},
	"content":     {},
	"mrn":         {},
	"reason_text": {},
}

// Sanitize returns a copy of meta with protected health information removed.
// Keys are dropped, not blanked, so a sanitized payload never hints at the
// shape of the data it excluded.
func Sanitize(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if _, protected := phiKeys[k]; protected {
			continue
		}
		out[k] = v
	}
	return out
}
