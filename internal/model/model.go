package model

import (
	"regexp"
	"strings"
)

// DefaultColor is used whenever a service color is missing or malformed.
const DefaultColor = "#2E7D32"

// Service is a reusable shift template. Start and End are stored in
// canonical 24-hour HH:MM form regardless of the display preference.
type Service struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	Start string `json:"start"`
	End   string `json:"end"`
	Color string `json:"color"`
}

// Override replaces individual service fields for a single date.
// Nil fields are absent; a non-nil empty string is a deliberate value.
type Override struct {
	Name  *string `json:"name,omitempty"`
	Desc  *string `json:"desc,omitempty"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

// IsEmpty reports whether no field of the override is set.
func (o Override) IsEmpty() bool {
	return o.Name == nil && o.Desc == nil && o.Start == nil && o.End == nil
}

// Merge applies patch on top of o field by field and returns the result.
func (o Override) Merge(patch Override) Override {
	out := o
	if patch.Name != nil {
		out.Name = patch.Name
	}
	if patch.Desc != nil {
		out.Desc = patch.Desc
	}
	if patch.Start != nil {
		out.Start = patch.Start
	}
	if patch.End != nil {
		out.End = patch.End
	}
	return out
}

// Effective is the merged view of a service and its date override.
type Effective struct {
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Resolve merges a service with a per-date override. Override fields win
// when present, otherwise the service field, otherwise empty. Every
// consumer of effective fields (grid, detail views, all exporters) must go
// through this one function.
func Resolve(svc *Service, ov *Override) Effective {
	var eff Effective
	if svc != nil {
		eff = Effective{Name: svc.Name, Desc: svc.Desc, Start: svc.Start, End: svc.End}
	}
	if ov != nil {
		if ov.Name != nil {
			eff.Name = *ov.Name
		}
		if ov.Desc != nil {
			eff.Desc = *ov.Desc
		}
		if ov.Start != nil {
			eff.Start = *ov.Start
		}
		if ov.End != nil {
			eff.End = *ov.End
		}
	}
	return eff
}

var (
	shortHexRe = regexp.MustCompile(`^#[0-9A-Fa-f]{3}$`)
	fullHexRe  = regexp.MustCompile(`^#[0-9A-F]{6}$`)
)

// SanitizeColor normalizes a color value to uppercase #RRGGBB form.
// A leading '#' is added if missing, #RGB is expanded, anything else
// falls back to DefaultColor.
func SanitizeColor(c string) string {
	val := strings.TrimSpace(c)
	if val == "" {
		return DefaultColor
	}
	if !strings.HasPrefix(val, "#") {
		val = "#" + val
	}
	if shortHexRe.MatchString(val) {
		r, g, b := val[1:2], val[2:3], val[3:4]
		val = "#" + r + r + g + g + b + b
	}
	val = strings.ToUpper(val)
	if !fullHexRe.MatchString(val) {
		return DefaultColor
	}
	return val
}
