package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	march1 := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		raw    string
		want   time.Time
		wantOK bool
	}{
		{name: "day first slashes", raw: "01/03/2024", want: march1, wantOK: true},
		{name: "day first no padding", raw: "1/3/2024", want: march1, wantOK: true},
		{name: "iso", raw: "2024-03-01", want: march1, wantOK: true},
		{name: "day first dashes", raw: "01-03-2024", want: march1, wantOK: true},
		{name: "month first when day first is impossible", raw: "03/25/2024", want: time.Date(2024, time.March, 25, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "short textual month with dashes", raw: "01-Mar-2024", want: march1, wantOK: true},
		{name: "short textual month", raw: "1 Mar 2024", want: march1, wantOK: true},
		{name: "long textual month", raw: "1 March 2024", want: march1, wantOK: true},
		{name: "compact", raw: "20240301", want: march1, wantOK: true},
		{name: "iso with slashes", raw: "2024/03/01", want: march1, wantOK: true},
		{name: "dots", raw: "01.03.2024", want: march1, wantOK: true},
		{name: "repeated whitespace collapsed", raw: " 1   Mar  2024 ", want: march1, wantOK: true},
		{name: "timestamp loses time of day", raw: "2024-03-01 13:45:00", want: march1, wantOK: true},
		{name: "garbage", raw: "yesterday", wantOK: false},
		{name: "blank", raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.raw)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDates_PreferredLayoutWins(t *testing.T) {
	d := NewDates("1/2/2006")

	got, ok := d.Parse("03/04/2024")
	require.True(t, ok)
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 4, got.Day())

	got, ok = Date("03/04/2024")
	require.True(t, ok)
	assert.Equal(t, time.April, got.Month())
}

func TestDates_Value(t *testing.T) {
	d := NewDates()
	ts := time.Date(2024, time.March, 1, 18, 30, 0, 0, time.UTC)

	got, ok := d.Value(ts)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", got.Format("2006-01-02"))
	assert.Zero(t, got.Hour())

	_, ok = d.Value(time.Time{})
	assert.False(t, ok)

	_, ok = d.Value(42)
	assert.False(t, ok)
}

func TestConvertLayout(t *testing.T) {
	assert.Equal(t, "2/1/2006", ConvertLayout("%d/%m/%Y"))
	assert.Equal(t, "2006-1-2", ConvertLayout("%Y-%m-%d"))
	assert.Equal(t, "2 January 2006", ConvertLayout("%d %B %Y"))
}
