package calc

import (
	"math"
	"testing"

	"github.com/gonum/matrix/mat64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPearson(t *testing.T) {
	ts := mat64.NewDense(4, 5, []float64{
		1, 2, 3, 4, 5,
		2, 4, 6, 8, 10,
		5, 4, 3, 2, 1,
		3, 3, 3, 3, 3,
	})

	conn, err := Pearson(ts)
	require.NoError(t, err)
	require.Equal(t, 4, conn.Symmetric())

	for i := 0; i < 4; i++ {
		assert.Equal(t, 1.0, conn.At(i, i))
	}
	assert.InDelta(t, 1, conn.At(0, 1), 1e-12)
	assert.InDelta(t, -1, conn.At(0, 2), 1e-12)
	assert.InDelta(t, -1, conn.At(2, 1), 1e-12)
	assert.True(t, math.IsNaN(conn.At(0, 3)), "constant region has no correlation")
	assert.True(t, math.IsNaN(conn.At(3, 2)))
}

func TestPearsonConstantRows(t *testing.T) {
	for _, c := range []float64{0.3, 0.7, 1.1, 523.17, 1234.5678, 0.123456789} {
		for _, length := range []int{37, 40, 150} {
			ts := mat64.NewDense(3, length, nil)
			for k := 0; k < length; k++ {
				x := math.Sin(float64(k))
				ts.Set(0, k, x)
				ts.Set(1, k, c)
				ts.Set(2, k, 1000+x)
			}

			conn, err := Pearson(ts)
			require.NoError(t, err)
			assert.True(t, math.IsNaN(conn.At(1, 0)), "constant %v over %d points", c, length)
			assert.True(t, math.IsNaN(conn.At(2, 1)), "constant %v over %d points", c, length)
			assert.InDelta(t, 1, conn.At(2, 0), 1e-10)

			_, std := RowStats(ts)
			assert.Equal(t, 0.0, std[1])
		}
	}
}

func TestPearsonTooSmall(t *testing.T) {
	_, err := Pearson(mat64.NewDense(1, 5, nil))
	assert.Error(t, err)

	_, err = Pearson(mat64.NewDense(3, 1, nil))
	assert.Error(t, err)
}

func TestZScoring(t *testing.T) {
	in := mat64.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		7, 7, 7, 7,
	})
	out := mat64.NewDense(2, 4, nil)
	require.NoError(t, ZScoring(in, out))

	var sum, sumSq float64
	for k := 0; k < 4; k++ {
		v := out.At(0, k)
		sum += v
		sumSq += v * v
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.InDelta(t, 4, sumSq, 1e-12)
	assert.True(t, math.IsNaN(out.At(1, 0)))

	assert.Error(t, ZScoring(in, mat64.NewDense(3, 4, nil)))
}

func TestLedoitWolf(t *testing.T) {
	ts := mat64.NewDense(3, 8, []float64{
		0.1, 0.5, -0.3, 0.8, 0.2, -0.6, 0.4, 0.0,
		0.2, 0.4, -0.1, 0.9, 0.1, -0.5, 0.5, 0.1,
		-0.4, 0.3, 0.6, -0.2, 0.7, 0.1, -0.8, 0.2,
	})

	conn, err := LedoitWolf(ts)
	require.NoError(t, err)

	plain, err := Pearson(ts)
	require.NoError(t, err)

	assert.True(t, SymCheck(conn, 1e-12))
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, conn.At(i, i))
		for j := 0; j < 3; j++ {
			if i == j {
				continue
			}
			v := conn.At(i, j)
			assert.True(t, v >= -1 && v <= 1)
			// Shrinkage pulls correlations toward zero.
			assert.LessOrEqual(t, math.Abs(v), math.Abs(plain.At(i, j))+1e-12)
		}
	}
}

func TestLedoitWolfConstantRow(t *testing.T) {
	ts := mat64.NewDense(3, 4, []float64{
		1, 2, 3, 5,
		2, 2, 2, 2,
		4, 1, 0, 2,
	})

	conn, err := LedoitWolf(ts)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(conn.At(0, 1)))
	assert.True(t, math.IsNaN(conn.At(1, 2)))
	assert.False(t, math.IsNaN(conn.At(0, 2)))
}

func TestMean(t *testing.T) {
	a := mat64.NewSymDense(2, []float64{1, 0.2, 0.2, 1})
	b := mat64.NewSymDense(2, []float64{1, 0.6, 0.6, 1})
	c := mat64.NewSymDense(2, []float64{1, math.NaN(), math.NaN(), 1})

	mean, err := Mean([]*mat64.SymDense{a, b, c})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, mean.At(0, 1), 1e-12)
	assert.InDelta(t, 1, mean.At(1, 1), 1e-12)

	onlyNaN, err := Mean([]*mat64.SymDense{c})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(onlyNaN.At(0, 1)))

	_, err = Mean(nil)
	assert.Error(t, err)

	_, err = Mean([]*mat64.SymDense{a, mat64.NewSymDense(3, nil)})
	assert.Error(t, err)
}

func TestThreshold(t *testing.T) {
	in := mat64.NewSymDense(3, []float64{
		1, -0.5, 0.3,
		-0.5, 1, 0,
		0.3, 0, 1,
	})

	out := Threshold(in, 0, 0)
	assert.Equal(t, 0.0, out.At(0, 1))
	assert.Equal(t, 0.3, out.At(0, 2))
	assert.Equal(t, 0.0, out.At(1, 2))
	assert.Equal(t, 1.0, out.At(1, 1))
	assert.Equal(t, -0.5, in.At(0, 1), "input is untouched")
}

func TestSymCheck(t *testing.T) {
	sym := mat64.NewDense(2, 2, []float64{1, 0.5, 0.5, 1})
	assert.True(t, SymCheck(sym, 1e-9))

	asym := mat64.NewDense(2, 2, []float64{1, 0.5, 0.4, 1})
	assert.False(t, SymCheck(asym, 1e-9))

	halfNaN := mat64.NewDense(2, 2, []float64{1, math.NaN(), 0.4, 1})
	assert.False(t, SymCheck(halfNaN, 1e-9))

	assert.False(t, SymCheck(mat64.NewDense(2, 3, nil), 1e-9))

	s, ok := ToSym(sym, 1e-9)
	require.True(t, ok)
	assert.Equal(t, 0.5, s.At(1, 0))

	_, ok = ToSym(asym, 1e-9)
	assert.False(t, ok)
}
