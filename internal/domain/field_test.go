package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestField_Reorder checks that level reversal moves whole slabs with their levels.
func TestField_Reorder(t *testing.T) {
	f := NewPressureField([]float64{100, 500, 1000}, 1, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	require.Equal(t, LevelsAscending, f.Order)

	d := f.Reorder(LevelsDescending)
	assert.Equal(t, []float64{1000, 500, 100}, d.Levels)
	assert.Equal(t, []float64{5, 6, 3, 4, 1, 2}, d.Data)
	assert.Equal(t, LevelsDescending, d.Order)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, f.Data, "source must not be modified")

	back := d.Reorder(LevelsAscending)
	assert.Equal(t, f.Data, back.Data)
	assert.Equal(t, f.Levels, back.Levels)

	same := d.Reorder(LevelsDescending)
	assert.Equal(t, d.Data, same.Data)
}

func TestField_Validate(t *testing.T) {
	assert.NoError(t, surface(1, 2).Validate())
	assert.Error(t, NewSurfaceField(2, 2, []float64{1}).Validate())
	assert.Error(t, Field{}.Validate())

	f := NewField(2, 1, 1)
	f.Levels = []float64{1}
	assert.Error(t, f.Validate())
}

func TestField_Accessors(t *testing.T) {
	f := NewPressureField([]float64{1000, 500}, 2, 3, []float64{
		0, 1, 2,
		3, 4, 5,
		6, 7, 8,
		9, 10, 11,
	})
	assert.Equal(t, 12, f.Size())
	assert.Equal(t, 6, f.SlabSize())
	assert.Equal(t, []float64{6, 7, 8, 9, 10, 11}, f.Slab(1))
	assert.Equal(t, 10.0, f.At(1, 1, 1))
	assert.Equal(t, float32(11), f.Float32()[11])
	assert.Equal(t, LevelsNone, OrderOf([]float64{5}))
	assert.Equal(t, "descending", LevelsDescending.String())
}

func TestField_SelectLevels(t *testing.T) {
	f := NewPressureField([]float64{100, 500, 1000}, 1, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})

	got, err := f.SelectLevels([]float64{1000, 100})
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 100}, got.Levels)
	assert.Equal(t, 2, got.NLev)
	assert.Equal(t, LevelsDescending, got.Order)
	assert.Equal(t, []float64{5, 6, 1, 2}, got.Data)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, f.Data)

	_, err = f.SelectLevels([]float64{1000, 850})
	assert.ErrorIs(t, err, ErrLevelMissing)
	assert.ErrorContains(t, err, "850 Pa")

	_, err = NewSurfaceField(1, 2, []float64{1, 2}).SelectLevels([]float64{1000})
	assert.Error(t, err)
}
