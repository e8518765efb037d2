package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoilLayer_Code(t *testing.T) {
	codes := make([]string, 0, len(DefaultSoilLayers))
	for _, l := range DefaultSoilLayers {
		codes = append(codes, l.Code())
	}
	assert.Equal(t, []string{"000007", "007028", "028100", "100289"}, codes)
	assert.Equal(t, "SM028100", DefaultSoilLayers[2].FieldName("SM"))
}

// TestStackSoilLayers checks stacking order and the split back into named slabs.
func TestStackSoilLayers(t *testing.T) {
	slabs := []Field{surface(1, 1), surface(2, 2), surface(3, 3), surface(4, 4)}
	for i := range slabs {
		slabs[i].Units = "K"
	}
	st, err := StackSoilLayers("ST", DefaultSoilLayers, slabs)
	require.NoError(t, err)
	assert.Equal(t, 4, st.NLev)
	assert.Equal(t, []float64{1, 1, 2, 2, 3, 3, 4, 4}, st.Data)
	assert.Equal(t, LevelsNone, st.Order)

	parts, err := SplitSoilLayers(st, "ST")
	require.NoError(t, err)
	require.Len(t, parts, 4)
	assert.Equal(t, "ST100289", parts[3].Name)
	assert.Equal(t, []float64{4, 4}, parts[3].Data)
	assert.Equal(t, "K", parts[0].Units)

	_, err = StackSoilLayers("ST", DefaultSoilLayers, slabs[:3])
	assert.Error(t, err)

	slabs[1] = surface(1, 2, 3)
	_, err = StackSoilLayers("ST", DefaultSoilLayers, slabs)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
