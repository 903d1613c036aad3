// Package richtext holds structured rich-text content in the shape the CMS
// delivers it, and turns it into HTML or plain text.
package richtext

const (
	Heading1     = "heading1"
	Heading2     = "heading2"
	Heading3     = "heading3"
	Heading4     = "heading4"
	Heading5     = "heading5"
	Heading6     = "heading6"
	Paragraph    = "paragraph"
	Preformatted = "preformatted"
	ListItem     = "list-item"
	OListItem    = "o-list-item"
	Image        = "image"

	Strong    = "strong"
	Em        = "em"
	Hyperlink = "hyperlink"
	Label     = "label"
)

// Span marks up the runes [Start, End) of a node's text.
type Span struct {
	Start int       `json:"start" bson:"start"`
	End   int       `json:"end" bson:"end"`
	Type  string    `json:"type" bson:"type"`
	Data  *SpanData `json:"data,omitempty" bson:"data,omitempty"`
}

type SpanData struct {
	URL    string `json:"url,omitempty" bson:"url,omitempty"`
	Target string `json:"target,omitempty" bson:"target,omitempty"`
	Label  string `json:"label,omitempty" bson:"label,omitempty"`
}

// Node is a single block. Text blocks carry Text and Spans, image blocks
// carry URL and Alt.
type Node struct {
	Type  string `json:"type" bson:"type"`
	Text  string `json:"text,omitempty" bson:"text,omitempty"`
	Spans []Span `json:"spans,omitempty" bson:"spans,omitempty"`
	URL   string `json:"url,omitempty" bson:"url,omitempty"`
	Alt   string `json:"alt,omitempty" bson:"alt,omitempty"`
}

type Body []Node

func headingLevel(kind string) int {
	switch kind {
	case Heading1:
		return 1
	case Heading2:
		return 2
	case Heading3:
		return 3
	case Heading4:
		return 4
	case Heading5:
		return 5
	case Heading6:
		return 6
	}
	return 0
}
