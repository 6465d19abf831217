package steps

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Section is a heading with the list items that follow it.
type Section struct {
	Level int      `json:"level"`
	Title string   `json:"title"`
	Items []string `json:"items,omitempty"`
}

// parseSections splits markdown into headings and the list items under each.
// Items before the first heading land in a level-0 section with no title.
func parseSections(source string) []Section {
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var sections []Section
	current := -1
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			sections = append(sections, Section{Level: node.Level, Title: inlineText(node, src)})
			current = len(sections) - 1
		case *ast.List:
			if current < 0 {
				sections = append(sections, Section{})
				current = 0
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if first := item.FirstChild(); first != nil {
					if s := cleanItem(inlineText(first, src)); s != "" {
						sections[current].Items = append(sections[current].Items, s)
					}
				}
			}
		}
	}
	return sections
}

// inlineText concatenates the text under n.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := child.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(c.Value)
		case *ast.AutoLink:
			sb.Write(c.Label(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

var checkboxPrefix = regexp.MustCompile(`^\[[ xX]?\]\s*`)

func cleanItem(s string) string {
	return strings.TrimSpace(checkboxPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}

// RenderHTML converts markdown to HTML.
func RenderHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

var fence = regexp.MustCompile("^\\s*```")

// textAfterHeading returns everything after the first heading line containing
// one of markers, with a surrounding code fence removed. ok is false when no
// such heading exists or nothing follows it.
func textAfterHeading(source string, markers ...string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		found bool
		lines []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !found {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "#") && containsAny(trimmed, markers) {
				found = true
			}
			continue
		}
		lines = append(lines, line)
	}
	if !found {
		return "", false
	}

	// drop a fence wrapping the whole body
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) >= 2 && fence.MatchString(lines[0]) && fence.MatchString(lines[len(lines)-1]) {
		lines = lines[1 : len(lines)-1]
	}

	body := strings.TrimSpace(strings.Join(lines, "\n"))
	return body, body != ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
