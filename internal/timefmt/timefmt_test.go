package timefmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Clock
		ok    bool
	}{
		{"canonical morning", "08:30", Clock{8, 30}, true},
		{"canonical midnight", "00:00", Clock{0, 0}, true},
		{"canonical last minute", "23:59", Clock{23, 59}, true},
		{"single digit hour", "9:05", Clock{9, 5}, true},
		{"12h morning", "9:05 AM", Clock{9, 5}, true},
		{"12h afternoon", "2:30 PM", Clock{14, 30}, true},
		{"12h noon", "12:00 PM", Clock{12, 0}, true},
		{"12h midnight", "12:00 AM", Clock{0, 0}, true},
		{"12h lowercase no space", "7:15pm", Clock{19, 15}, true},
		{"surrounding whitespace", "  10:00  ", Clock{10, 0}, true},
		{"hour out of range", "24:00", Clock{}, false},
		{"minute out of range", "10:60", Clock{}, false},
		{"12h hour zero", "0:30 AM", Clock{}, false},
		{"12h hour thirteen", "13:00 PM", Clock{}, false},
		{"empty", "", Clock{}, false},
		{"garbage", "soon", Clock{}, false},
		{"missing minutes", "10:", Clock{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		clock Clock
		use24 bool
		want  string
	}{
		{"24h padded", Clock{8, 5}, true, "08:05"},
		{"24h evening", Clock{19, 15}, true, "19:15"},
		{"12h morning", Clock{8, 5}, false, "8:05 AM"},
		{"12h noon", Clock{12, 0}, false, "12:00 PM"},
		{"12h midnight", Clock{0, 0}, false, "12:00 AM"},
		{"12h evening", Clock{19, 15}, false, "7:15 PM"},
		{"out of range", Clock{25, 0}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.clock, tt.use24))
		})
	}
}

// Every parsable time must survive a format/parse round trip in both
// display formats without changing its clock value.
func TestRoundTrip(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		for _, minute := range []int{0, 1, 30, 59} {
			c := Clock{Hour: hour, Minute: minute}

			got24, ok := Parse(Format(c, true))
			if !ok || got24 != c {
				t.Fatalf("24h round trip broke %02d:%02d: got %v ok=%v", hour, minute, got24, ok)
			}

			got12, ok := Parse(Format(c, false))
			if !ok || got12 != c {
				t.Fatalf("12h round trip broke %02d:%02d: got %v ok=%v", hour, minute, got12, ok)
			}
		}
	}
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "2:30 PM", Display("14:30", false))
	assert.Equal(t, "14:30", Display("2:30 PM", true))
	// Malformed stored values pass through unchanged.
	assert.Equal(t, "whenever", Display("whenever", true))
	assert.Equal(t, "", Display("", false))
}

func TestIsCanonical(t *testing.T) {
	assert.True(t, IsCanonical("08:30"))
	assert.True(t, IsCanonical("23:59"))
	assert.False(t, IsCanonical("8:30"))
	assert.False(t, IsCanonical("24:00"))
	assert.False(t, IsCanonical("2:30 PM"))
}
