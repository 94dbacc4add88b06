package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressDocumentUnmarshal(t *testing.T) {
	t.Run("LegacyString", func(t *testing.T) {
		var doc AddressDocument
		require.NoError(t, json.Unmarshal([]byte(`"42 Wallaby Way, Sydney"`), &doc))
		assert.True(t, doc.IsRaw())
		assert.Equal(t, "42 Wallaby Way, Sydney", doc.Raw)
		assert.Nil(t, doc.Structured)
	})

	t.Run("StructuredObject", func(t *testing.T) {
		var doc AddressDocument
		require.NoError(t, json.Unmarshal([]byte(`{"street":"1 Garden St","city":"Sydney","zipCode":"2000","country":"Australia"}`), &doc))
		assert.False(t, doc.IsRaw())
		require.NotNil(t, doc.Structured)
		assert.Equal(t, "2000", doc.Structured.ZipCode)
	})

	t.Run("Null", func(t *testing.T) {
		var doc AddressDocument
		require.NoError(t, json.Unmarshal([]byte(`null`), &doc))
		assert.False(t, doc.IsRaw())
		assert.Nil(t, doc.Structured)
	})
}

func TestAddressDocumentMarshal(t *testing.T) {
	t.Run("StructuredWinsOverRaw", func(t *testing.T) {
		doc := AddressDocument{
			Raw:        "stale string",
			Structured: &Address{City: "Sydney", Country: "Australia"},
		}
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.JSONEq(t, `{"city":"Sydney","country":"Australia"}`, string(out))
	})

	t.Run("RawPreservedWhenUnrepaired", func(t *testing.T) {
		doc := AddressDocument{Raw: "12 Rose St"}
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.Equal(t, `"12 Rose St"`, string(out))
	})
}

func TestUpdateProfileParamsIsEmpty(t *testing.T) {
	assert.True(t, (UpdateProfileParams{}).IsEmpty())

	name := "alice"
	assert.False(t, (UpdateProfileParams{Username: &name}).IsEmpty())
}
