// Debug tool to explain how nugget boundaries match a page
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"

	"nuggets/boundary"
	"nuggets/fetcher"
	"nuggets/nugget"
	"nuggets/page"
	"nuggets/render"
	"nuggets/textindex"
)

var (
	start    = flag.String("start", "", "Start phrase")
	end      = flag.String("end", "", "End phrase")
	file     = flag.String("n", "", "Nuggets JSON file to diagnose")
	tree     = flag.Bool("tree", false, "Dump the content root with buffer offsets")
	maxDepth = flag.Int("depth", 4, "Maximum tree depth")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("Usage: debug [-start s -end e | -n nuggets.json] [-tree] <url|file>")
		os.Exit(2)
	}

	res, err := fetcher.Smart(context.Background(), flag.Arg(0))
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	pg, err := page.ParseString(res.HTML, res.FinalURL)
	if err != nil {
		fmt.Println("Parse error:", err)
		os.Exit(1)
	}
	ix := textindex.Build(pg.Root)
	fmt.Printf("%s: root <%s>, %d text nodes, %d bytes of text\n\n", res.FinalURL, pg.Root.Data, len(ix.Spans), len(ix.Buffer))

	if *tree {
		analyzeNode(ix, pg.Root, 0, *maxDepth)
		fmt.Println()
	}

	var nuggets []nugget.Nugget
	switch {
	case *file != "":
		f, err := os.Open(*file)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		batch, err := nugget.Decode(f)
		f.Close()
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		for _, d := range batch.Dropped {
			fmt.Println("dropped:", d)
		}
		nuggets = batch.Nuggets
	case *start != "" || *end != "":
		nuggets = []nugget.Nugget{{Type: nugget.TypeTool, StartContent: *start, EndContent: *end}}
	}

	m := boundary.New(boundary.DefaultConfig())
	for _, n := range nuggets {
		diagnose(m, ix, n)
	}
}

func diagnose(m *boundary.Matcher, ix *textindex.Index, n nugget.Nugget) {
	fmt.Printf("%q ... %q\n", n.StartContent, n.EndContent)

	tbl := render.NewTable("Tier", "Ran", "Found", "Conf", "Range", "Text")
	tbl.MaxCell = 48
	for _, r := range m.Diagnose(ix, n.StartContent, n.EndContent) {
		ran, found, conf, span, text := "no", "-", "-", "-", ""
		if r.Ran {
			ran = "yes"
			found = "no"
		}
		if r.Result.Found {
			found = "yes"
			conf = fmt.Sprintf("%.2f", r.Result.Confidence)
			span = fmt.Sprintf("%d-%d", r.Result.Start, r.Result.End)
			text = strings.Join(strings.Fields(ix.Text(r.Result.Start, r.Result.End)), " ")
		}
		tbl.AddRow(r.Strategy.String(), ran, found, conf, span, text)
	}
	fmt.Println(tbl.RenderToString())

	chosen := m.Match(ix, n.StartContent, n.EndContent)
	fmt.Printf("match: %s\n\n", chosen.Strategy)
}

func analyzeNode(ix *textindex.Index, n *html.Node, depth, maxDepth int) {
	if depth > maxDepth {
		return
	}

	indent := strings.Repeat("  ", depth)

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		attrs := ""
		for _, a := range c.Attr {
			if a.Key == "id" || a.Key == "class" {
				attrs += fmt.Sprintf(" %s=%q", a.Key, a.Val)
			}
		}
		offsets := "(no text)"
		if s, e, ok := ix.SpanRange(c); ok {
			offsets = fmt.Sprintf("[%d-%d]", s, e)
		}
		fmt.Printf("%s<%s%s> %s\n", indent, c.Data, attrs, offsets)
		analyzeNode(ix, c, depth+1, maxDepth)
	}
}
