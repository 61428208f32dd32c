package checker

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNormalization(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "bare ten digits get US country code",
			text: "7828124894",
			want: []string{"+17828124894"},
		},
		{
			name: "punctuated NA number",
			text: "+1 (902) 912-2670",
			want: []string{"+19029122670"},
		},
		{
			name: "comma separated list",
			text: "8257862503, 8733638775",
			want: []string{"+18257862503", "+18733638775"},
		},
		{
			name: "eleven digits with leading one",
			text: "18257976152",
			want: []string{"+18257976152"},
		},
		{
			// The NA alternative wins leftmost-first, so a bare long run
			// clips to its first ten digits.
			name: "long digit run clips to NA shape",
			text: "reach me at 447911123456 tomorrow",
			want: []string{"+14479111234"},
		},
		{
			name: "duplicates collapse to first occurrence",
			text: "7828124894 and +1 782 812 4894 again 7828124894",
			want: []string{"+17828124894"},
		},
		{
			name: "no numbers",
			text: "hello there",
			want: nil,
		},
		{
			name: "short runs are dropped",
			text: "call 911 or 555-0199",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtractOutputShape(t *testing.T) {
	// Mixed garbage in, every output must be unique and match +<11-15 digits>.
	text := "x 7828124894 y +1 (902) 912-2670, 447911123456 8257862503 8257862503 99 123456789012345678"
	numbers := Extract(text)
	require.NotEmpty(t, numbers)

	shape := regexp.MustCompile(`^\+\d{11,15}$`)
	seen := map[string]bool{}
	for _, number := range numbers {
		assert.Regexp(t, shape, number)
		assert.False(t, seen[number], "duplicate %s", number)
		seen[number] = true
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "+17828124894", Normalize("782-812-4894"))
	assert.Equal(t, "+19029122670", Normalize("+1 (902) 912-2670"))
	assert.Equal(t, "+447911123456", Normalize("44 7911 123456"))
}
