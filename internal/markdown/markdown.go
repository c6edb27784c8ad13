// Package markdown turns lesson bodies into sections, blocks, HTML and plain text.
package markdown

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// SectionKind classifies a part of a lesson body.
type SectionKind int

const (
	SectionBody SectionKind = iota
	SectionExample
	SectionExercise
)

// Section is a contiguous slice of a lesson body.
type Section struct {
	Kind     SectionKind
	Title    string
	Markdown string
}

// CodeBlock is a fenced or indented code block.
type CodeBlock struct {
	Info string
	Code string
}

// Blocks holds the top-level building blocks of a Markdown fragment.
type Blocks struct {
	Paragraphs []string
	Quotes     []string
	Code       []CodeBlock
}

var (
	sectionHeading = regexp.MustCompile(`(?i)^##\s+(example|exercise)\s*:\s*(.+?)\s*#*\s*$`)
	anyHeading     = regexp.MustCompile(`^#{1,2}\s`)
)

func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// Sections splits body at "## Example: <title>" and "## Exercise: <title>"
// headings. Any other level one or two heading returns to body content.
// Headings inside fenced code are ignored. Consecutive body parts are merged.
func Sections(body []byte) []Section {
	var (
		out     []Section
		cur     = Section{Kind: SectionBody}
		buf     strings.Builder
		inFence bool
		fence   string
	)
	flush := func() {
		cur.Markdown = strings.TrimSpace(buf.String())
		buf.Reset()
		if cur.Kind == SectionBody && cur.Markdown == "" {
			return
		}
		if cur.Kind == SectionBody && len(out) > 0 && out[len(out)-1].Kind == SectionBody {
			out[len(out)-1].Markdown += "\n\n" + cur.Markdown
			return
		}
		out = append(out, cur)
	}

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimLeft(line, " ")

		if f := fenceMarker(trimmed); f != "" {
			switch {
			case !inFence:
				inFence, fence = true, f
			case strings.HasPrefix(trimmed, fence) && strings.TrimSpace(strings.TrimLeft(trimmed, fence[:1])) == "":
				inFence = false
			}
		}

		if !inFence {
			if m := sectionHeading.FindStringSubmatch(line); m != nil {
				flush()
				kind := SectionExample
				if strings.EqualFold(m[1], "exercise") {
					kind = SectionExercise
				}
				cur = Section{Kind: kind, Title: m[2]}
				continue
			}
			if cur.Kind != SectionBody && anyHeading.MatchString(line) {
				flush()
				cur = Section{Kind: SectionBody}
			}
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()
	return out
}

func fenceMarker(line string) string {
	for _, f := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, f) {
			n := len(line) - len(strings.TrimLeft(line, f[:1]))
			return strings.Repeat(f[:1], n)
		}
	}
	return ""
}

// ParseBlocks collects the top-level paragraphs, blockquotes and code blocks of md.
func ParseBlocks(md []byte) Blocks {
	root := newMarkdown().Parser().Parse(text.NewReader(md))

	var b Blocks
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *gmast.Paragraph:
			if p := rawLines(node, md); p != "" {
				b.Paragraphs = append(b.Paragraphs, p)
			}
		case *gmast.Blockquote:
			var parts []string
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if p := rawLines(c, md); p != "" {
					parts = append(parts, p)
				}
			}
			if len(parts) > 0 {
				b.Quotes = append(b.Quotes, strings.Join(parts, "\n"))
			}
		case *gmast.FencedCodeBlock:
			b.Code = append(b.Code, CodeBlock{
				Info: strings.ToLower(string(node.Language(md))),
				Code: codeLines(node, md),
			})
		case *gmast.CodeBlock:
			b.Code = append(b.Code, CodeBlock{Code: codeLines(node, md)})
		}
	}
	return b
}

func rawLines(n gmast.Node, src []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := range lines.Len() {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(src))))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func codeLines(n gmast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderHTML renders md to HTML with GitHub flavored extensions.
func RenderHTML(md []byte) (string, error) {
	var buf bytes.Buffer
	if err := newMarkdown().Convert(md, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PlainText renders md and strips all markup, collapsing whitespace.
func PlainText(md []byte) (string, error) {
	rendered, err := RenderHTML(md)
	if err != nil {
		return "", err
	}

	var words []string
	z := html.NewTokenizer(strings.NewReader(rendered))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.Join(words, " "), nil
			}
			return "", z.Err()
		case html.TextToken:
			words = append(words, strings.Fields(string(z.Text()))...)
		}
	}
}

// WordCount counts whitespace separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
