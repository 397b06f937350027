package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWireFormat(t *testing.T) {
	s := Snapshot{ConditionCode: 500, HighTemp: "25", LowTemp: "16", LastUpdated: "21:42 - JUL 31 2016"}

	assert.Equal(t, "500,25,16,21:42 - JUL 31 2016", string(Encode(s)))
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Snapshot
	}{
		{"typical", Snapshot{ConditionCode: 500, HighTemp: "25", LowTemp: "16", LastUpdated: "21:42 - JUL 31 2016"}},
		{"negative temperatures", Snapshot{ConditionCode: 600, HighTemp: "-2", LowTemp: "-11", LastUpdated: "07:05 - JAN 02 2017"}},
		{"phone defaults", Snapshot{ConditionCode: 800}},
		{"unicode", Snapshot{ConditionCode: 801, HighTemp: "25°", LowTemp: "16°", LastUpdated: "21:42 - JUIL. 31 2016"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(Encode(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.in, got)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"one field", "500"},
		{"three fields", "500,25,16"},
		{"delimiter in timestamp", "500,25,16,21:42, JUL 31 2016"},
		{"non numeric code", "rain,25,16,21:42 - JUL 31 2016"},
		{"invalid utf-8", "500,25,16,\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestIconForCondition(t *testing.T) {
	tests := []struct {
		code int
		want Icon
	}{
		{200, IconStorm},
		{232, IconStorm},
		{300, IconLightRain},
		{321, IconLightRain},
		{500, IconRain},
		{504, IconRain},
		{511, IconSnow},
		{512, IconClear},
		{520, IconRain},
		{531, IconRain},
		{600, IconSnow},
		{622, IconSnow},
		{701, IconFog},
		{761, IconFog},
		{781, IconStorm},
		{800, IconClear},
		{801, IconLightClouds},
		{802, IconCloudy},
		{804, IconCloudy},
		{805, IconClear},
		{0, IconClear},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IconForCondition(tt.code), "code %d", tt.code)
	}
}
