package richtext

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"github.com/kyokomi/emoji"
)

// AsHTML renders body as HTML. Consecutive list items are grouped into a
// single <ul> or <ol>; unknown block types are skipped.
func AsHTML(body Body) template.HTML {
	var b strings.Builder
	list := ""
	for _, n := range body {
		if want := listTag(n.Type); want != list {
			if list != "" {
				b.WriteString("</" + list + ">")
			}
			if want != "" {
				b.WriteString("<" + want + ">")
			}
			list = want
		}

		switch {
		case headingLevel(n.Type) > 0:
			level := headingLevel(n.Type)
			fmt.Fprintf(&b, "<h%d>%s</h%d>", level, inline(n, true), level)
		case n.Type == Paragraph:
			b.WriteString("<p>" + inline(n, true) + "</p>")
		case n.Type == Preformatted:
			b.WriteString("<pre>" + inline(n, false) + "</pre>")
		case n.Type == ListItem || n.Type == OListItem:
			b.WriteString("<li>" + inline(n, true) + "</li>")
		case n.Type == Image:
			fmt.Fprintf(&b, `<p class="block-img"><img src="%s" alt="%s" /></p>`,
				html.EscapeString(safeURL(n.URL)), html.EscapeString(n.Alt))
		}
	}
	if list != "" {
		b.WriteString("</" + list + ">")
	}
	return template.HTML(b.String())
}

func listTag(kind string) string {
	switch kind {
	case ListItem:
		return "ul"
	case OListItem:
		return "ol"
	}
	return ""
}

// inline splits the text at every span boundary and wraps each segment in
// the tags of the spans covering it, so the output always nests properly.
func inline(n Node, breaks bool) string {
	text := []rune(n.Text)
	spans := make([]Span, 0, len(n.Spans))
	bounds := map[int]bool{0: true, len(text): true}
	for _, s := range n.Spans {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > len(text) {
			s.End = len(text)
		}
		if s.Start >= s.End || openTag(s) == "" {
			continue
		}
		spans = append(spans, s)
		bounds[s.Start] = true
		bounds[s.End] = true
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	cuts := make([]int, 0, len(bounds))
	for c := range bounds {
		cuts = append(cuts, c)
	}
	sort.Ints(cuts)

	var b strings.Builder
	for i := 0; i+1 < len(cuts); i++ {
		from, to := cuts[i], cuts[i+1]
		segment := html.EscapeString(emoji.Sprint(string(text[from:to])))
		if breaks {
			segment = strings.ReplaceAll(segment, "\n", "<br />")
		}

		var active []Span
		for _, s := range spans {
			if s.Start <= from && s.End >= to {
				active = append(active, s)
			}
		}
		for _, s := range active {
			b.WriteString(openTag(s))
		}
		b.WriteString(segment)
		for j := len(active) - 1; j >= 0; j-- {
			b.WriteString(closeTag(active[j]))
		}
	}
	return b.String()
}

func openTag(s Span) string {
	switch s.Type {
	case Strong:
		return "<strong>"
	case Em:
		return "<em>"
	case Label:
		label := ""
		if s.Data != nil {
			label = s.Data.Label
		}
		return `<span class="` + html.EscapeString(label) + `">`
	case Hyperlink:
		if s.Data == nil {
			return "<a>"
		}
		tag := `<a href="` + html.EscapeString(safeURL(s.Data.URL)) + `"`
		if s.Data.Target != "" {
			tag += ` target="` + html.EscapeString(s.Data.Target) + `" rel="noopener noreferrer"`
		}
		return tag + ">"
	}
	return ""
}

func closeTag(s Span) string {
	switch s.Type {
	case Strong:
		return "</strong>"
	case Em:
		return "</em>"
	case Label:
		return "</span>"
	case Hyperlink:
		return "</a>"
	}
	return ""
}

// safeURL drops links with schemes that could execute script.
func safeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return u.String()
	}
	return "#"
}
