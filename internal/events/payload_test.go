package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowPlaying_RoundTrip(t *testing.T) {
	in := NowPlaying{Title: "A", Artist: "B", Album: "C", PlayedAt: "D", IsPlaying: true}
	wire := in.Encode()
	assert.Equal(t, "A|B|C|D|1", wire)

	out, err := DecodeNowPlaying(wire)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	stopped := NowPlaying{Title: "A", IsPlaying: false}
	assert.Equal(t, "A||||0", stopped.Encode())
}

func TestNowPlaying_RejectsWrongFieldCount(t *testing.T) {
	for _, bad := range []string{"", "A|B|C|D", "A|B|C", "A|B|C|D|1|extra"} {
		_, err := DecodeNowPlaying(bad)
		assert.ErrorIs(t, err, ErrMalformedPayload, "payload %q", bad)
	}
}

func TestNowPlaying_PipesInTextKeepFieldCount(t *testing.T) {
	in := NowPlaying{Title: "Left|Right", Artist: "X", Album: "Y", PlayedAt: "Now playing", IsPlaying: true}
	out, err := DecodeNowPlaying(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, "Left/Right", out.Title)
}

func TestWeather_Encoding(t *testing.T) {
	w := Weather{City: "Seoul", Temperature: 21.5, Main: "Clouds", FeelsLike: 20, Humidity: 64}
	assert.Equal(t, "Seoul|21.5|Clouds|20|64", w.Encode())

	out, err := DecodeWeather("Seoul|21.5|Clouds|20|64")
	require.NoError(t, err)
	assert.Equal(t, w, out)
}

func TestWeather_LenientNumbers(t *testing.T) {
	out, err := DecodeWeather("London|warm|Rain|-1.25|n/a")
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Temperature)
	assert.Equal(t, -1.25, out.FeelsLike)
	assert.Equal(t, 0, out.Humidity)

	out, err = DecodeWeather("London|1|Rain|1|71.0")
	require.NoError(t, err)
	assert.Equal(t, 71, out.Humidity)

	_, err = DecodeWeather("London|1|Rain|1")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestTimeSyncRequest_Encoding(t *testing.T) {
	r := TimeSyncRequest{Zone: "New York", UTCOffsetHours: -5}
	assert.Equal(t, "New York|-5", r.Encode())

	out, err := DecodeTimeSyncRequest("New York|-5")
	require.NoError(t, err)
	assert.Equal(t, r, out)

	_, err = DecodeTimeSyncRequest("Seoul|nine")
	assert.ErrorIs(t, err, ErrMalformedPayload)
	_, err = DecodeTimeSyncRequest("Seoul")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestKinds(t *testing.T) {
	assert.True(t, KindWeatherRequest.Valid())
	assert.False(t, Kind("bogus").Valid())
	assert.True(t, KindWeatherRequest.IsRequest())
	assert.True(t, KindTimeSyncComplete.IsResponse())
	assert.False(t, KindWiFiConnected.IsResponse())

	resp, ok := ResponseKind(KindNowPlayingRequest)
	assert.True(t, ok)
	assert.Equal(t, KindNowPlayingDataReceived, resp)
	_, ok = ResponseKind(KindWiFiConnected)
	assert.False(t, ok)
}

func TestNewResponse_FailureDropsPayload(t *testing.T) {
	e := NewResponse(KindWeatherDataReceived, SubjectWeather, "leftover", false)
	assert.Empty(t, e.Payload)
	assert.False(t, e.Success)
}
