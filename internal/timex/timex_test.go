package timex

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", in: `"15m"`, want: 15 * time.Minute},
		{name: "nanoseconds", in: `1000000000`, want: time.Second},
		{name: "bad string", in: `"fifteen"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Duration)

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1h30m0s", string(b))
}

func TestRFC3339_RoundTrip(t *testing.T) {
	in := time.Date(2024, 5, 17, 10, 11, 12, 123456789, time.FixedZone("X", 3600))

	s := FormatRFC3339(in)
	assert.Equal(t, "2024-05-17T09:11:12.123456789Z", s)

	out, err := ParseRFC3339(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.Equal(t, time.UTC, out.Location())
}

func TestParseRFC3339_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-05-17", "yesterday", "2024-13-01T00:00:00Z"} {
		_, err := ParseRFC3339(s)
		assert.ErrorIs(t, err, ErrFailToParse, s)
	}
}

func TestAddChecked(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := AddChecked(base, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), got)

	got, err = AddChecked(base, 0)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	nearEnd := time.Date(9999, 12, 31, 23, 0, 0, 0, time.UTC)
	_, err = AddChecked(nearEnd, 2*time.Hour)
	assert.ErrorIs(t, err, ErrTimeOutOfRange)

	_, err = AddChecked(base, time.Duration(math.MaxInt64))
	require.NoError(t, err)

	_, err = AddChecked(time.Date(9800, 1, 1, 0, 0, 0, 0, time.UTC), time.Duration(math.MaxInt64))
	assert.ErrorIs(t, err, ErrTimeOutOfRange)
}
