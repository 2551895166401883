// Package page parses fetched HTML into the document nuggets are anchored in.
package page

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is a parsed document plus the subtree holding its main content.
type Page struct {
	URL   string
	Title string
	Doc   *html.Node
	Root  *html.Node
}

// Parse reads a document and locates its content root.
func Parse(r io.Reader, url string) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Page{
		URL:   url,
		Title: Title(doc),
		Doc:   doc,
		Root:  ContentRoot(doc),
	}, nil
}

// ParseString parses HTML from a string.
func ParseString(s, url string) (*Page, error) {
	return Parse(strings.NewReader(s), url)
}

// ContentRoot returns the first article, else main, else body, else doc.
func ContentRoot(doc *html.Node) *html.Node {
	for _, tag := range []atom.Atom{atom.Article, atom.Main, atom.Body} {
		if n := findElement(doc, tag); n != nil {
			return n
		}
	}
	return doc
}

// Title prefers the document title, then og:title, then the first h1.
func Title(doc *html.Node) string {
	q := goquery.NewDocumentFromNode(doc)
	if t := strings.TrimSpace(q.Find("title").First().Text()); t != "" {
		return t
	}
	if t, ok := q.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return strings.Join(strings.Fields(q.Find("h1").First().Text()), " ")
}

func findElement(n *html.Node, tag atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// InjectStyle appends a style element with css to the document head,
// creating the head when the document has none.
func (p *Page) InjectStyle(css string) {
	if css == "" {
		return
	}
	head := findElement(p.Doc, atom.Head)
	if head == nil {
		htmlEl := findElement(p.Doc, atom.Html)
		if htmlEl == nil {
			return
		}
		head = &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
		htmlEl.InsertBefore(head, htmlEl.FirstChild)
	}
	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "data-golden-nugget-style", Val: ""}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	head.AppendChild(style)
}

// Render serializes the whole document.
func (p *Page) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, p.Doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Blocks returns the block-level elements under the content root in
// document order, the units terminal output is laid out in.
func (p *Page) Blocks() []*html.Node {
	var blocks []*html.Node
	goquery.NewDocumentFromNode(p.Root).
		Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre").
		Each(func(_ int, s *goquery.Selection) {
			n := s.Get(0)
			// nested blocks are covered by their outermost ancestor
			if s.ParentsFiltered("p, li, blockquote, pre").Length() > 0 {
				return
			}
			blocks = append(blocks, n)
		})
	return blocks
}
