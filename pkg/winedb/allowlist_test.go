package winedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsForbiddenKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		forbidden bool
	}{
		{name: "plain identity field", key: "producer", forbidden: false},
		{name: "price", key: "price", forbidden: true},
		{name: "case insensitive", key: "RetailPrice", forbidden: true},
		{name: "offer embedded", key: "best_offer_id", forbidden: true},
		{name: "currency", key: "currency_code", forbidden: true},
		{name: "market", key: "market_value", forbidden: true},
		{name: "region is fine", key: "region", forbidden: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.forbidden, IsForbiddenKey(tc.key))
		})
	}
}

func TestFindForbiddenKeysJSON(t *testing.T) {
	t.Run("clean payload yields nothing", func(t *testing.T) {
		raw := []byte(`{"suggestions":[{"name":"Chateau Margaux","producer":"Chateau Margaux","region":"Margaux","score":0.97}]}`)
		assert.Empty(t, FindForbiddenKeysJSON(raw))
	})

	t.Run("finds keys nested in arrays and objects", func(t *testing.T) {
		raw := []byte(`{"suggestions":[{"name":"x","pricing":{"avg_price":12.5}}],"market_data":{}}`)
		keys := FindForbiddenKeysJSON(raw)
		assert.ElementsMatch(t, []string{"pricing", "avg_price", "market_data"}, keys)
	})

	t.Run("unparsable payload yields nothing", func(t *testing.T) {
		assert.Empty(t, FindForbiddenKeysJSON([]byte(`{"broken`)))
	})
}
