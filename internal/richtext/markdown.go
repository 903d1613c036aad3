package richtext

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/russross/blackfriday/v2"
	"golang.org/x/net/html"
)

// FromMarkdown converts Markdown into rich-text blocks.
func FromMarkdown(src []byte) (Body, error) {
	return FromHTML(bytes.NewReader(blackfriday.Run(src)))
}

// FromHTML converts a fragment of block-level HTML into rich-text blocks.
// Inline <strong>/<b>, <em>/<i>, <a> and <code> become spans.
func FromHTML(r io.Reader) (Body, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "can't parse html")
	}

	body := Body{}
	doc.Find("body").Children().Each(func(i int, s *goquery.Selection) {
		body = append(body, blocks(s)...)
	})
	return body, nil
}

func blocks(s *goquery.Selection) []Node {
	switch name := goquery.NodeName(s); name {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return []Node{textNode("heading"+name[1:], s)}
	case "p":
		if img := s.Children().Filter("img"); img.Length() == 1 && strings.TrimSpace(s.Text()) == "" {
			return []Node{{Type: Image, URL: img.AttrOr("src", ""), Alt: img.AttrOr("alt", "")}}
		}
		return []Node{textNode(Paragraph, s)}
	case "img":
		return []Node{{Type: Image, URL: s.AttrOr("src", ""), Alt: s.AttrOr("alt", "")}}
	case "pre":
		return []Node{{Type: Preformatted, Text: strings.TrimRight(s.Text(), "\n")}}
	case "ul", "ol":
		kind := ListItem
		if name == "ol" {
			kind = OListItem
		}
		var items []Node
		s.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
			items = append(items, textNode(kind, li))
		})
		return items
	case "blockquote", "div":
		var nested []Node
		s.Children().Each(func(i int, c *goquery.Selection) {
			nested = append(nested, blocks(c)...)
		})
		return nested
	case "hr", "script", "style":
		return nil
	default:
		return []Node{textNode(Paragraph, s)}
	}
}

type inlineBuilder struct {
	text  []rune
	spans []Span
}

func textNode(kind string, s *goquery.Selection) Node {
	ib := &inlineBuilder{}
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			ib.walk(c)
		}
	}
	ib.trim()
	sort.SliceStable(ib.spans, func(i, j int) bool {
		if ib.spans[i].Start != ib.spans[j].Start {
			return ib.spans[i].Start < ib.spans[j].Start
		}
		return ib.spans[i].End > ib.spans[j].End
	})
	return Node{Type: kind, Text: string(ib.text), Spans: ib.spans}
}

func (ib *inlineBuilder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		ib.text = append(ib.text, []rune(n.Data)...)
	case html.ElementNode:
		if n.Data == "br" {
			ib.text = append(ib.text, '\n')
			return
		}
		start := len(ib.text)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			ib.walk(c)
		}
		end := len(ib.text)
		if end == start {
			return
		}
		switch n.Data {
		case "strong", "b":
			ib.spans = append(ib.spans, Span{Start: start, End: end, Type: Strong})
		case "em", "i":
			ib.spans = append(ib.spans, Span{Start: start, End: end, Type: Em})
		case "code":
			ib.spans = append(ib.spans, Span{Start: start, End: end, Type: Label, Data: &SpanData{Label: "code"}})
		case "a":
			data := &SpanData{URL: attr(n, "href"), Target: attr(n, "target")}
			ib.spans = append(ib.spans, Span{Start: start, End: end, Type: Hyperlink, Data: data})
		}
	}
}

// trim removes surrounding whitespace and shifts the spans accordingly.
func (ib *inlineBuilder) trim() {
	lead := 0
	for lead < len(ib.text) && unicode.IsSpace(ib.text[lead]) {
		lead++
	}
	tail := len(ib.text)
	for tail > lead && unicode.IsSpace(ib.text[tail-1]) {
		tail--
	}
	ib.text = ib.text[lead:tail]

	spans := ib.spans[:0]
	for _, s := range ib.spans {
		s.Start -= lead
		s.End -= lead
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > len(ib.text) {
			s.End = len(ib.text)
		}
		if s.Start < s.End {
			spans = append(spans, s)
		}
	}
	ib.spans = spans
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
