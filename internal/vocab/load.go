package vocab

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// yamlFile accepts either a flat phrase list or a categories map.
type yamlFile struct {
	Phrases    []BlockedPhrase         `yaml:"phrases"`
	Categories map[string]yamlCategory `yaml:"categories"`
}

type yamlCategory struct {
	Name     string          `yaml:"name"`
	Patterns []BlockedPhrase `yaml:"patterns"`
}

// LoadFile reads a blocked-phrase list from a .yaml/.yml/.json or .md file.
func LoadFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blocked phrases %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return ParseMarkdown(data)
	default:
		// JSON is valid YAML
		return ParseYAML(data)
	}
}

// Parse picks the parser from a brand asset content type.
func Parse(contentType string, data []byte) (List, error) {
	switch contentType {
	case "markdown", "text", "":
		return ParseMarkdown(data)
	default:
		return ParseYAML(data)
	}
}

// ParseYAML parses the YAML form. Categories are emitted in key order.
func ParseYAML(data []byte) (List, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse blocked phrases: %w", err)
	}

	list := make(List, 0, len(f.Phrases))
	for _, p := range f.Phrases {
		if strings.TrimSpace(p.Pattern) != "" {
			list = append(list, p)
		}
	}

	keys := make([]string, 0, len(f.Categories))
	for k := range f.Categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cat := f.Categories[k]
		name := cat.Name
		if name == "" {
			name = k
		}
		for _, p := range cat.Patterns {
			if strings.TrimSpace(p.Pattern) == "" {
				continue
			}
			if p.Category == "" {
				p.Category = name
			}
			list = append(list, p)
		}
	}
	return list, nil
}

// ParseMarkdown reads every GFM table in the document. Columns are phrase,
// replacement and reason; the nearest preceding heading names the category.
func ParseMarkdown(data []byte) (List, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(data))

	var list List
	category := ""
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			category = strings.TrimSpace(nodeText(node, data))
			return ast.WalkSkipChildren, nil
		case *extast.TableRow:
			var cells []string
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, strings.TrimSpace(nodeText(c, data)))
			}
			if len(cells) == 0 || cells[0] == "" {
				return ast.WalkSkipChildren, nil
			}
			p := BlockedPhrase{Category: category, Pattern: cells[0]}
			if len(cells) > 1 {
				p.Replacement = cells[1]
			}
			if len(cells) > 2 {
				p.Reason = cells[2]
			}
			list = append(list, p)
			return ast.WalkSkipChildren, nil
		case *extast.TableHeader:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown tables: %w", err)
	}
	return list, nil
}

// nodeText concatenates the text segments under n.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
