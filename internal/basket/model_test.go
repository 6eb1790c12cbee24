package basket_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/basket-service/internal/basket"
)

func TestEncodeItems_RoundTrip(t *testing.T) {
	items := basket.Items{"00012": 3, "00045": 1}

	encoded, err := basket.EncodeItems(items)
	require.NoError(t, err)

	decoded := basket.DecodeItems(encoded)
	assert.Equal(t, items, decoded)
}

func TestEncodeItems_EmptyMap(t *testing.T) {
	encoded, err := basket.EncodeItems(basket.Items{})
	require.NoError(t, err)
	assert.Equal(t, "{}", encoded)

	encoded, err = basket.EncodeItems(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", encoded)
}

func TestEncodeItems_DropsNonPositiveQuantities(t *testing.T) {
	encoded, err := basket.EncodeItems(basket.Items{"00012": 2, "00045": 0, "00099": -3})
	require.NoError(t, err)

	decoded := basket.DecodeItems(encoded)
	assert.Equal(t, basket.Items{"00012": 2}, decoded)
}

func TestDecodeItems(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected basket.Items
	}{
		{name: "object", raw: `{"00012":3,"00045":1}`, expected: basket.Items{"00012": 3, "00045": 1}},
		{name: "empty_object", raw: `{}`, expected: basket.Items{}},
		{name: "empty_string", raw: ``, expected: basket.Items{}},
		{name: "null", raw: `null`, expected: basket.Items{}},
		{name: "not_an_object", raw: `[1,2,3]`, expected: basket.Items{}},
		{name: "garbage", raw: `{{{`, expected: basket.Items{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, basket.DecodeItems(tt.raw))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, basket.StatusOpen.Terminal())
	assert.True(t, basket.StatusOrders.Terminal())
	assert.True(t, basket.StatusCleared.Terminal())
	assert.True(t, basket.StatusCancelled.Terminal())
}
