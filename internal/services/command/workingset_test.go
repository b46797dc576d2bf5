package command

import (
	"strconv"
	"testing"

	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingSetPutGetReset(t *testing.T) {
	ws, err := NewWorkingSet(4)
	require.NoError(t, err)

	ws.Put(mmodel.Balance{AccountID: "1", Currency: "USDT", Available: dec("5"), Version: 1})

	cached, ok := ws.Get("1", "USDT")
	require.True(t, ok)
	assert.True(t, cached.Available.Equal(dec("5")))

	_, ok = ws.Get("1", "BTC")
	assert.False(t, ok)

	ws.Reset()

	_, ok = ws.Get("1", "USDT")
	assert.False(t, ok)
}

func TestWorkingSetEvictsBeyondBound(t *testing.T) {
	ws, err := NewWorkingSet(2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ws.Put(mmodel.Balance{AccountID: strconv.Itoa(i), Currency: "USDT", Version: 1})
	}

	assert.Equal(t, 2, ws.Len())
}
