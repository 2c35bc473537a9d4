package gains

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePreset_AllNamesAnyCase(t *testing.T) {
	want := map[string]Vector{
		"flat":   {0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		"bass":   {4, 3, 2, 1, 0, 0, -1, -2, -3, -4},
		"treble": {-4, -3, -2, -1, 0, 0, 1, 2, 3, 4},
		"vshape": {3, 2, 1, 0, -1, -2, 1, 2, 3, 4},
	}

	for name, vec := range want {
		for _, spelled := range []string{name, strings.ToUpper(name), strings.ToUpper(name[:1]) + name[1:], "  " + name + "\t"} {
			got, err := ResolvePreset(spelled)
			require.NoError(t, err, spelled)
			assert.Equal(t, vec, got, spelled)
		}
	}
}

func TestResolvePreset_Unknown(t *testing.T) {
	for _, name := range []string{"", "loud", "bass boost", "flat1"} {
		_, err := ResolvePreset(name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrUnknownPreset), "%q: %v", name, err)
	}
}

func TestPresetNames_Order(t *testing.T) {
	assert.Equal(t, []string{"flat", "bass", "treble", "vshape"}, PresetNames())

	// Callers must not be able to reorder the package copy.
	names := PresetNames()
	names[0] = "x"
	assert.Equal(t, "flat", PresetNames()[0])
}

func TestParseGains_TenNumbers(t *testing.T) {
	got, err := ParseGains(strings.Fields("0 3 -2 0 5 0 -3 2 0 1"))
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 3, -2, 0, 5, 0, -3, 2, 0, 1}, got)

	got, err = ParseGains([]string{"1.5", "-0.25", "+2", "1e1", "0", "0", "0", "0", "0", "-12.75"})
	require.NoError(t, err)
	assert.Equal(t, Vector{1.5, -0.25, 2, 10, 0, 0, 0, 0, 0, -12.75}, got)
}

func TestParseGains_WrongCount(t *testing.T) {
	for _, n := range []int{0, 1, 3, 9, 11, 20} {
		tokens := make([]string, n)
		for i := range tokens {
			tokens[i] = "1"
		}
		_, err := ParseGains(tokens)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrWrongCount), "n=%d: %v", n, err)

		var ge *Error
		require.True(t, errors.As(err, &ge))
		assert.Equal(t, n, ge.Count)
	}
}

func TestParseGains_NotNumeric(t *testing.T) {
	cases := []string{"abc", "NaN", "nan", "inf", "-Inf", "Infinity", "1e400", "", "3dB"}
	for _, bad := range cases {
		tokens := strings.Fields("0 0 0 0 0 0 0 0 0 0")
		tokens[4] = bad
		_, err := ParseGains(tokens)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, ErrNotNumeric), "%q: %v", bad, err)

		var ge *Error
		require.True(t, errors.As(err, &ge))
		assert.Equal(t, 4, ge.Index)
	}
}

func TestFromFloats(t *testing.T) {
	v, err := FromFloats([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)
	assert.Equal(t, Vector{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, v)

	_, err = FromFloats([]float64{1, 2})
	assert.True(t, errors.Is(err, ErrWrongCount))

	_, err = FromFloats([]float64{0, 0, math.NaN(), 0, 0, 0, 0, 0, 0, 0})
	assert.True(t, errors.Is(err, ErrNotNumeric))

	_, err = FromFloats([]float64{0, 0, 0, 0, 0, 0, 0, 0, 0, math.Inf(-1)})
	assert.True(t, errors.Is(err, ErrNotNumeric))
}

func TestParseCommand_PresetWins(t *testing.T) {
	got, err := ParseCommand("bass")
	require.NoError(t, err)
	assert.Equal(t, Vector{4, 3, 2, 1, 0, 0, -1, -2, -3, -4}, got)

	got, err = ParseCommand("  VShape \n")
	require.NoError(t, err)
	assert.Equal(t, presets[PresetVShape], got)
}

func TestParseCommand_Numbers(t *testing.T) {
	got, err := ParseCommand("0 3 -2 0 5 0 -3 2 0 1")
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 3, -2, 0, 5, 0, -3, 2, 0, 1}, got)

	// Any whitespace separates tokens.
	got, err = ParseCommand("0\t3  -2\n0 5 0 -3 2 0 1")
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 3, -2, 0, 5, 0, -3, 2, 0, 1}, got)
}

func TestParseCommand_Errors(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"3 4 5", ErrWrongCount},
		{"", ErrWrongCount},
		{"   ", ErrWrongCount},
		{"loud", ErrUnknownPreset},
		{"bass 1 2", ErrWrongCount},
		{"bass 1 2 3 4 5 6 7 8 9", ErrNotNumeric},
		{"1 2 3 4 5 6 7 8 9 x", ErrNotNumeric},
		{"7", ErrWrongCount},
	}
	for _, tc := range cases {
		_, err := ParseCommand(tc.in)
		require.Error(t, err, tc.in)
		assert.True(t, errors.Is(err, tc.want), "%q: got %v, want %v", tc.in, err, tc.want)
	}
}

func TestOutOfRange_PassThrough(t *testing.T) {
	v, err := ParseCommand("-45 0 0 0 0 0 0 0 0 31")
	require.NoError(t, err)
	assert.Equal(t, -45.0, v[0])
	assert.Equal(t, 31.0, v[9])
	assert.Equal(t, []int{0, 9}, v.OutOfRange())

	assert.Empty(t, presets[PresetBass].OutOfRange())
}

func TestEncodeRequest_Bass(t *testing.T) {
	v, err := ResolvePreset("bass")
	require.NoError(t, err)
	assert.Equal(t, "[4,3,2,1,0,0,-1,-2,-3,-4]\n", string(v.EncodeRequest()))
}

func TestEncodeDecode_Lossless(t *testing.T) {
	vectors := []Vector{
		{0.1, -0.2, 1.0 / 3.0, math.Pi, -math.E, 1e-9, 29.999999, -30, 12.5, 0},
	}
	for _, name := range PresetNames() {
		v, _ := ResolvePreset(name)
		vectors = append(vectors, v)
	}

	for _, v := range vectors {
		got, err := DecodeVector(v.EncodeRequest())
		require.NoError(t, err)
		assert.Equal(t, v, got)

		b, err := json.Marshal(v)
		require.NoError(t, err)
		var back Vector
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, v, back)
	}
}

func TestDecodeVector_Rejects(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"[1,2,3]", ErrWrongCount},
		{"[1,2,3,4,5,6,7,8,9,10,11]", ErrWrongCount},
		{`[1,2,3,4,5,6,7,8,9,"10"]`, ErrNotNumeric},
		{"[1,2,3,4,5,6,7,8,9,null]", ErrNotNumeric},
		{"[1,2,3,4,5,6,7,8,9,[10]]", ErrNotNumeric},
		{"[1,2,3,4,5,6,7,8,9,1e400]", ErrNotNumeric},
	}
	for _, tc := range cases {
		_, err := DecodeVector([]byte(tc.in))
		require.Error(t, err, tc.in)
		assert.True(t, errors.Is(err, tc.want), "%s: %v", tc.in, err)
	}

	for _, in := range []string{"", "null", "{}", "bass", "[1,2", "[0,0,0,0,0,0,0,0,0,0] trailing"} {
		_, err := DecodeVector([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestVector_String(t *testing.T) {
	v, _ := ResolvePreset("bass")
	s := v.String()
	assert.True(t, strings.HasPrefix(s, "31Hz:+4.0 62Hz:+3.0"), s)
	assert.True(t, strings.HasSuffix(s, "16kHz:-4.0"), s)
}

func TestMarshalJSON_RejectsNaN(t *testing.T) {
	v := Vector{}
	v[3] = math.NaN()
	_, err := json.Marshal(v)
	assert.Error(t, err)
}
