package curl_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/trinary"
)

func absorbTrits(t *testing.T, trytes trinary.Trytes) trinary.Trits {
	t.Helper()
	trits, err := trinary.TrytesToTrits(trytes)
	require.NoError(t, err)
	return trits
}

func TestNewCurl(t *testing.T) {
	_, err := curl.NewCurl(42)
	assert.ErrorIs(t, err, curl.ErrInvalidRounds)

	c, err := curl.NewCurl(curl.NumRoundsP27)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestSqueezeDeterministic(t *testing.T) {
	in := absorbTrits(t, strings.Repeat("TEST9", 27)[:81])

	a := curl.NewCurlP27()
	a.Absorb(in)
	b := curl.NewCurlP27()
	b.Absorb(in)

	assert.Equal(t, a.Squeeze(curl.HashLength), b.Squeeze(curl.HashLength))
}

func TestSqueezeChangesInput(t *testing.T) {
	// all-nine input would not do: the all-zero state is a fixed point of
	// the 27-round permutation
	in := absorbTrits(t, strings.Repeat("M", 81))
	c := curl.NewCurlP27()
	c.Absorb(in)
	out := c.Squeeze(curl.HashLength)

	require.NoError(t, trinary.ValidTrits(out))
	assert.NotEqual(t, in, out)
}

func TestAbsorbIsLengthExtensible(t *testing.T) {
	x := absorbTrits(t, strings.Repeat("KAPPA9THETA9SIGMA9ABC9POLO9", 3))
	y := absorbTrits(t, strings.Repeat("Z", 81))
	require.Len(t, x, curl.HashLength)
	require.Len(t, y, curl.HashLength)

	split := curl.NewCurlP27()
	split.Absorb(x)
	split.Absorb(y)

	joined := curl.NewCurlP27()
	joined.Absorb(append(append(trinary.Trits{}, x...), y...))

	assert.Equal(t, split.Squeeze(curl.HashLength), joined.Squeeze(curl.HashLength))
}

func TestRateDoesNotAdvance(t *testing.T) {
	c := curl.NewCurlP27()
	c.Absorb(absorbTrits(t, strings.Repeat("A", 81)))

	rate := c.Rate(curl.HashLength)
	assert.Equal(t, rate, c.Rate(curl.HashLength))
	// the first squeezed block equals the peeked rate
	assert.Equal(t, rate, c.Squeeze(curl.HashLength))
}

func TestSqueezeAdvances(t *testing.T) {
	c := curl.NewCurlP27()
	c.Absorb(absorbTrits(t, strings.Repeat("B", 81)))

	first := c.Squeeze(curl.HashLength)
	second := c.Squeeze(curl.HashLength)
	assert.NotEqual(t, first, second)

	// a double-length squeeze is the concatenation of two single squeezes
	d := curl.NewCurlP27()
	d.Absorb(absorbTrits(t, strings.Repeat("B", 81)))
	both := d.Squeeze(2 * curl.HashLength)
	assert.Equal(t, first, both[:curl.HashLength])
	assert.Equal(t, second, both[curl.HashLength:])
}

func TestReset(t *testing.T) {
	c := curl.NewCurlP27()
	c.Absorb(absorbTrits(t, strings.Repeat("C", 81)))
	c.Reset()

	fresh := curl.NewCurlP27()
	assert.Equal(t, fresh.Squeeze(curl.HashLength), c.Squeeze(curl.HashLength))
}

func TestClone(t *testing.T) {
	c := curl.NewCurlP27()
	c.Absorb(absorbTrits(t, strings.Repeat("D", 81)))

	clone := c.Clone()
	assert.Equal(t, c.Squeeze(curl.HashLength), clone.Squeeze(curl.HashLength))
}

func TestRoundsDiffer(t *testing.T) {
	in := absorbTrits(t, strings.Repeat("E", 81))

	p27 := curl.NewCurlP27()
	p27.Absorb(in)
	p81 := curl.NewCurlP81()
	p81.Absorb(in)

	assert.NotEqual(t, p27.Squeeze(curl.HashLength), p81.Squeeze(curl.HashLength))
}
