package domain

import (
	"encoding/json/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/perpetuaapp/perpetua-client/internal/errors"
)

func TestContentCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content ItemContent
		json    string
	}{
		{"nft", NFTContent{Token: "token-1"}, `{"Nft":"token-1"}`},
		{"markdown", MarkdownContent{Text: "# Hello"}, `{"Markdown":"# Hello"}`},
		{"shelf", ShelfContent{ShelfID: "shelf-9"}, `{"Shelf":"shelf-9"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalContent(tt.content)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			back, err := UnmarshalContent(data)
			require.NoError(t, err)
			assert.Equal(t, tt.content, back)
		})
	}
}

func TestUnmarshalContent_UnknownVariant(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown tag", `{"Video":"clip-1"}`},
		{"empty object", `{}`},
		{"two variants", `{"Nft":"a","Markdown":"b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalContent([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, domainerrors.Is(err, domainerrors.ErrUnexpectedShape))
		})
	}
}

func TestUnmarshalContent_InvalidJSON(t *testing.T) {
	_, err := UnmarshalContent([]byte(`{`))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnexpectedShape))
}

func TestMarshalContent_NilContent(t *testing.T) {
	_, err := MarshalContent(nil)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnexpectedShape))
}

func TestItem_JSONRoundTrip(t *testing.T) {
	item := Item{ID: 7, Content: MarkdownContent{Text: "notes"}}

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"content":{"Markdown":"notes"}}`, string(data))

	var back Item
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, item, back)
}

func TestItem_UnmarshalRejectsUnknownContent(t *testing.T) {
	var item Item
	err := json.Unmarshal([]byte(`{"id":1,"content":{"Audio":"x"}}`), &item)
	assert.Error(t, err)
}

func TestContentKind_Exhaustive(t *testing.T) {
	contents := []ItemContent{
		NFTContent{Token: "t"},
		MarkdownContent{Text: "m"},
		ShelfContent{ShelfID: "s"},
	}

	kinds := make(map[ContentKind]bool)
	for _, c := range contents {
		kinds[c.Kind()] = true
	}

	assert.Equal(t, map[ContentKind]bool{
		ContentKindNFT:      true,
		ContentKindMarkdown: true,
		ContentKindShelf:    true,
	}, kinds)
}
