// Package markup implements the MarkupConverter: it turns a string that may
// contain HTML into a canonical Markdown representation. Per spec.md §9 the
// grammar is a small explicit tokenizer rather than a permissive DOM parser;
// podtext gets the tokenizer for free from golang.org/x/net/html (which also
// handles entity decoding), and layers a stack-based emitter on top that
// implements the conversion table in spec.md §4.3.
package markup

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ToMarkdown converts s, which may contain HTML, into Markdown. It never
// panics on malformed input — unclosed tags and illegal nesting degrade to
// best-effort output, per spec.md §4.3.
func ToMarkdown(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	e := &emitter{listStack: nil}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return collapseBlankLines(e.out.String())
		case html.TextToken:
			e.text(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			e.startTag(tok, tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			tok := z.Token()
			e.endTag(tok)
		}
	}
}

type listKind int

const (
	listNone listKind = iota
	listUnordered
	listOrdered
)

type emitter struct {
	out       strings.Builder
	linkHref  []string // stack of href for currently open <a>
	listStack []listKind
	olCounter []int
}

func (e *emitter) text(t string) {
	e.out.WriteString(t)
}

func (e *emitter) startTag(tok html.Token, selfClosing bool) {
	switch tok.DataAtom {
	case atom.A:
		href := attr(tok, "href")
		e.linkHref = append(e.linkHref, href)
		e.out.WriteString("\x00LINKSTART\x00")
	case atom.P:
		// paragraph open: nothing emitted, close handles the trailing \n\n
	case atom.Br:
		e.out.WriteString("\n")
	case atom.Strong, atom.B:
		e.out.WriteString("**")
	case atom.Em, atom.I:
		e.out.WriteString("*")
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(tok.Data[1] - '0')
		e.out.WriteString(strings.Repeat("#", level) + " ")
	case atom.Ul:
		e.listStack = append(e.listStack, listUnordered)
	case atom.Ol:
		e.listStack = append(e.listStack, listOrdered)
		e.olCounter = append(e.olCounter, 0)
	case atom.Li:
		e.writeListMarker()
	case atom.Code:
		e.out.WriteString("`")
	default:
		// unknown tag: stripped, inner text preserved — nothing to emit
	}
	_ = selfClosing
}

func (e *emitter) writeListMarker() {
	if len(e.listStack) == 0 {
		return
	}
	switch e.listStack[len(e.listStack)-1] {
	case listUnordered:
		e.out.WriteString("- ")
	case listOrdered:
		idx := len(e.olCounter) - 1
		e.olCounter[idx]++
		e.out.WriteString(strconv.Itoa(e.olCounter[idx]) + ". ")
	}
}

func (e *emitter) endTag(tok html.Token) {
	switch tok.DataAtom {
	case atom.A:
		href := ""
		if len(e.linkHref) > 0 {
			href = e.linkHref[len(e.linkHref)-1]
			e.linkHref = e.linkHref[:len(e.linkHref)-1]
		}
		full := e.out.String()
		idx := strings.LastIndex(full, "\x00LINKSTART\x00")
		if idx < 0 {
			return
		}
		text := full[idx+len("\x00LINKSTART\x00"):]
		e.out.Reset()
		e.out.WriteString(full[:idx])
		if href == "" {
			e.out.WriteString(text)
		} else {
			e.out.WriteString(fmt.Sprintf("[%s](%s)", text, href))
		}
	case atom.P:
		e.out.WriteString("\n\n")
	case atom.Strong, atom.B:
		e.out.WriteString("**")
	case atom.Em, atom.I:
		e.out.WriteString("*")
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		e.out.WriteString("\n")
	case atom.Li:
		e.out.WriteString("\n")
	case atom.Ul, atom.Ol:
		if len(e.listStack) > 0 {
			kind := e.listStack[len(e.listStack)-1]
			e.listStack = e.listStack[:len(e.listStack)-1]
			if kind == listOrdered && len(e.olCounter) > 0 {
				e.olCounter = e.olCounter[:len(e.olCounter)-1]
			}
		}
	case atom.Code:
		e.out.WriteString("`")
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// collapseBlankLines collapses runs of 3+ newlines to exactly two.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
