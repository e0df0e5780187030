package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() *ItemData {
	return &ItemData{
		ItemID:         "item-123",
		Prompt:         "a red fox",
		NegativePrompt: "blurry",
		Method:         "euler",
		Steps:          "20",
		Cfg:            "7",
		Seed:           "42",
		Vae:            "default",
		Size:           SizeInfo{Ratio: "1:1", Resolution: "512x512"},
		Model:          ModelRef{Name: "baseA", Link: "http://x/baseA"},
		AssetURLs:      []string{"http://x/media/fox_001.webp"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("Complete Item", func(t *testing.T) {
		assert.NoError(t, validItem().Validate())
	})

	t.Run("Loras Are Optional", func(t *testing.T) {
		data := validItem()
		data.Loras = nil
		assert.NoError(t, data.Validate())
	})

	t.Run("Names First Missing Field", func(t *testing.T) {
		data := validItem()
		data.Method = ""
		data.Seed = ""

		err := data.Validate()
		require.Error(t, err)

		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "method", missing.Field)
	})

	t.Run("Requires Assets", func(t *testing.T) {
		data := validItem()
		data.AssetURLs = nil

		err := data.Validate()
		require.Error(t, err)

		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "assets", missing.Field)
	})

	t.Run("Missing Size Field", func(t *testing.T) {
		data := validItem()
		data.Size.Resolution = ""

		var missing *MissingFieldError
		require.ErrorAs(t, data.Validate(), &missing)
		assert.Equal(t, "size.resolution", missing.Field)
	})
}
