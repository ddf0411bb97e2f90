package domain

import (
	"encoding/json/v2"
	"fmt"

	domainerrors "github.com/perpetuaapp/perpetua-client/internal/errors"
)

// ContentKind discriminates the item content variants.
type ContentKind string

const (
	ContentKindNFT      ContentKind = "nft"
	ContentKindMarkdown ContentKind = "markdown"
	ContentKindShelf    ContentKind = "shelf"
)

// ItemContent is the closed sum of content an item can hold: an NFT
// reference, markdown text, or a nested shelf reference. Content is
// immutable once set; to change an item's content the item is removed
// and re-added, never mutated in place.
//
// The set of variants is sealed by the unexported marker method, so
// every consumption site can switch exhaustively.
type ItemContent interface {
	isItemContent()
	Kind() ContentKind
}

// NFTContent references an NFT by its token identifier.
type NFTContent struct {
	Token string
}

func (NFTContent) isItemContent()    {}
func (NFTContent) Kind() ContentKind { return ContentKindNFT }

// MarkdownContent holds a markdown note.
type MarkdownContent struct {
	Text string
}

func (MarkdownContent) isItemContent()    {}
func (MarkdownContent) Kind() ContentKind { return ContentKindMarkdown }

// ShelfContent references a nested shelf by ID.
type ShelfContent struct {
	ShelfID string
}

func (ShelfContent) isItemContent()    {}
func (ShelfContent) Kind() ContentKind { return ContentKindShelf }

// contentEnvelope is the tagged wire form of ItemContent, mirroring the
// backend's variant encoding: exactly one of the fields is present.
type contentEnvelope struct {
	NFT      *string `json:"Nft,omitempty"`
	Markdown *string `json:"Markdown,omitempty"`
	Shelf    *string `json:"Shelf,omitempty"`
}

func encodeContent(c ItemContent) (contentEnvelope, error) {
	switch v := c.(type) {
	case NFTContent:
		return contentEnvelope{NFT: &v.Token}, nil
	case MarkdownContent:
		return contentEnvelope{Markdown: &v.Text}, nil
	case ShelfContent:
		return contentEnvelope{Shelf: &v.ShelfID}, nil
	case nil:
		return contentEnvelope{}, domainerrors.UnexpectedShape("item has no content")
	default:
		// Unreachable while the sum stays sealed.
		return contentEnvelope{}, domainerrors.UnexpectedShape(fmt.Sprintf("unknown content variant %T", c))
	}
}

func (e contentEnvelope) decode() (ItemContent, error) {
	set := 0
	if e.NFT != nil {
		set++
	}
	if e.Markdown != nil {
		set++
	}
	if e.Shelf != nil {
		set++
	}
	if set != 1 {
		return nil, domainerrors.UnexpectedShape("item content matched no known variant")
	}

	switch {
	case e.NFT != nil:
		return NFTContent{Token: *e.NFT}, nil
	case e.Markdown != nil:
		return MarkdownContent{Text: *e.Markdown}, nil
	default:
		return ShelfContent{ShelfID: *e.Shelf}, nil
	}
}

// MarshalContent encodes item content into its tagged wire JSON.
func MarshalContent(c ItemContent) ([]byte, error) {
	env, err := encodeContent(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalContent decodes tagged wire JSON into item content.
// A payload matching no known variant (or more than one) yields an
// UNEXPECTED_SHAPE error rather than a zero value.
func UnmarshalContent(data []byte) (ItemContent, error) {
	var env contentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, domainerrors.UnexpectedShape("item content is not valid JSON").WithCause(err)
	}
	return env.decode()
}
