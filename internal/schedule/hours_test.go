package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHours(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []HourRange
		wantErr bool
	}{
		{
			name:  "single interval",
			input: "09:00-17:00",
			want:  []HourRange{{9, 17}},
		},
		{
			name:  "multiple intervals",
			input: "08:00-12:00, 14:00-18:30",
			want:  []HourRange{{8, 12}, {14, 18.5}},
		},
		{
			name:  "overnight extends past 24",
			input: "22:00-02:00",
			want:  []HourRange{{22, 26}},
		},
		{
			name:  "24:00 normalizes to midnight",
			input: "16:00-24:00",
			want:  []HourRange{{16, 24}},
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "missing dash",
			input:   "09:00",
			wantErr: true,
		},
		{
			name:    "bad minute",
			input:   "09:75-17:00",
			wantErr: true,
		},
		{
			name:    "minutes past 24:00",
			input:   "09:00-24:30",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHours(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatHoursRoundTrip(t *testing.T) {
	ranges, err := ParseHours("09:00-12:30, 14:00-18:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00-12:30, 14:00-18:00", FormatHours(ranges))
}

func TestMergedHours(t *testing.T) {
	// Two cities sharing 09-17 on the same day merge into one block.
	got := mergedHours([]HourRange{{9, 17}, {9, 17}})
	assert.InDelta(t, 8.0, got, 1e-9)

	// Partial overlap merges, disjoint ranges add.
	got = mergedHours([]HourRange{{9, 13}, {11, 17}, {20, 22}})
	assert.InDelta(t, 10.0, got, 1e-9)
}
