// Nuggets finds the golden nuggets in a web page and highlights them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/net/html"

	"nuggets/boundary"
	"nuggets/browser"
	"nuggets/cache"
	"nuggets/config"
	"nuggets/engine"
	"nuggets/fetcher"
	"nuggets/highlight"
	"nuggets/llm"
	"nuggets/logger"
	"nuggets/nugget"
	"nuggets/page"
	"nuggets/render"
	"nuggets/textindex"
	"nuggets/theme"
)

type options struct {
	target      string
	nuggetsFile string
	output      string
	mode        string
	configPath  string
	print       bool
	useBrowser  bool
	show        bool
	noCache     bool
	verbose     bool
	initConfig  bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("nuggets", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.nuggetsFile, "n", "", "Read nuggets from a JSON file instead of asking the model")
	fs.StringVar(&o.output, "o", "", "Write the highlighted page to an HTML file")
	fs.StringVar(&o.mode, "mode", "", "Highlight strategy: auto, wrap or overlay (default from config)")
	fs.StringVar(&o.configPath, "config", "", "Config file (default ~/.config/nuggets/config.toml)")
	fs.BoolVar(&o.print, "p", false, "Print the page with highlights to stdout")
	fs.BoolVar(&o.useBrowser, "browser", false, "Render the page with Chrome before reading it")
	fs.BoolVar(&o.show, "show", false, "Open the highlighted page in Chrome and scroll to the first nugget")
	fs.BoolVar(&o.noCache, "no-cache", false, "Ignore cached extractions")
	fs.BoolVar(&o.verbose, "v", false, "Verbose logging")
	fs.BoolVar(&o.initConfig, "init-config", false, "Print the default config and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: nuggets [options] <url|file>\n\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.initConfig {
		return o, nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one url or file")
	}
	o.target = fs.Arg(0)
	if o.output == "" && !o.show {
		o.print = true
	}
	return o, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if opts.initConfig {
		fmt.Print(config.DefaultTOML())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	logger.SetVerbose(opts.verbose)
	logger.SetOutput(stderr)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return errors.New(config.FormatError(err))
	}

	fetcher.Configure(fetcher.Options{
		UserAgent:      cfg.Fetcher.UserAgent,
		TimeoutSeconds: cfg.Fetcher.TimeoutSeconds,
		ChromePath:     cfg.Fetcher.ChromePath,
	})

	logger.Section("Fetch")
	var res *fetcher.FetchResult
	if opts.useBrowser && !fetcher.IsLocal(opts.target) {
		res, err = fetcher.WithBrowser(ctx, opts.target)
	} else {
		res, err = fetcher.Smart(ctx, opts.target)
	}
	if err != nil {
		return err
	}
	logger.Info("fetched %s (%s, browser=%v, %s)", res.FinalURL, humanize.Bytes(uint64(len(res.HTML))), res.UsedBrowser, res.FetchTime.Round(time.Millisecond))

	pg, err := page.ParseString(res.HTML, res.FinalURL)
	if err != nil {
		return fmt.Errorf("parsing page: %w", err)
	}
	ix := textindex.Build(pg.Root)
	blocks := layoutBlocks(pg, ix)

	logger.Section("Nuggets")
	nuggets, err := loadNuggets(ctx, opts, cfg, pg, pageText(ix, blocks), stderr)
	if err != nil {
		return err
	}
	logger.Info("%d nuggets to place", len(nuggets))

	mode := cfg.Highlight.Mode
	if opts.mode != "" {
		mode = opts.mode
	}
	caps := highlight.Capabilities{HighlightAPI: opts.output == "" && !opts.show}
	applier := highlight.Select(mode, caps, cfg.Style())
	if !applier.Mutates() && (opts.output != "" || opts.show) {
		logger.Warn("overlay highlights are not written into HTML output")
	}

	var session *browser.Session
	var viewport highlight.Viewport
	if opts.show {
		session, err = browser.Open(ctx, false)
		if err != nil {
			return err
		}
		defer session.Close()
		viewport = session
	}

	logger.Section("Highlight")
	eng := engine.New(pg.Root, highlight.NewRegistry(applier, viewport), boundary.New(cfg.MatcherConfig()))
	outcomes := eng.HighlightAll(nuggets)
	report(stderr, outcomes)

	if opts.print {
		width := cfg.Rendering.DefaultWidth
		if f, ok := stdout.(*os.File); ok && render.IsTerminal(f) {
			width = render.Width(f, width)
		}
		th, ok := theme.Get(cfg.Rendering.Theme)
		if !ok {
			logger.Warn("unknown theme %q, using %s", cfg.Rendering.Theme, th.Name)
		}
		printer := render.NewPrinter(width)
		printer.LabelStyle = th.LabelStyle()
		if f, ok := stdout.(*os.File); !ok || !render.IsTerminal(f) {
			printer.Color = false
		}
		if pg.Title != "" {
			title := pg.Title
			if printer.Color {
				title = printer.HeadingStyle.Apply(title)
			}
			fmt.Fprintf(stdout, "%s\n\n", title)
		}
		// a mutating applier rebuilt the index, the buffer is unchanged
		if err := printer.Print(stdout, eng.Index().Buffer, layoutBlocks(pg, eng.Index()), marks(eng.Registry(), th)); err != nil {
			return err
		}
	}

	if opts.output != "" || opts.show {
		pg.InjectStyle(cfg.Style().StyleSheet())
		markup, err := pg.Render()
		if err != nil {
			return fmt.Errorf("rendering page: %w", err)
		}
		if opts.output != "" {
			if err := os.WriteFile(opts.output, []byte(markup), 0644); err != nil {
				return err
			}
			fmt.Fprintf(stderr, "wrote %s\n", opts.output)
		}
		if session != nil {
			if err := session.Show(markup); err != nil {
				return err
			}
			for _, o := range outcomes {
				if o.Highlighted() {
					eng.ScrollTo(ctx, o.Key)
					break
				}
			}
			fmt.Fprintln(stderr, "close the browser window or press Ctrl-C to exit")
			session.Wait(ctx)
		}
	}
	return nil
}

// loadNuggets reads -n, or asks the model, consulting the cache first.
func loadNuggets(ctx context.Context, opts *options, cfg *config.Config, pg *page.Page, text string, stderr io.Writer) ([]nugget.Nugget, error) {
	if opts.nuggetsFile != "" {
		f, err := os.Open(opts.nuggetsFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		batch, err := nugget.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", opts.nuggetsFile, err)
		}
		warnDropped(batch)
		return batch.Nuggets, nil
	}

	var store *cache.Store
	if cfg.Cache.Enabled {
		path, err := cfg.CachePath()
		if err == nil {
			store, err = cache.Open(path)
		}
		if err != nil {
			logger.Warn("cache unavailable: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	if store != nil && !opts.noCache {
		entry, err := store.Get(ctx, pg.URL, text)
		if err == nil {
			logger.Info("using %d cached nuggets extracted %s by %s", len(entry.Nuggets), humanize.Time(entry.ExtractedAt), entry.Provider)
			return entry.Nuggets, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("reading cache: %v", err)
		}
	}

	client := llm.NewDefaultClient(llm.Options{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
	})
	provider := client.Provider()
	if provider == nil {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY, install the claude CLI, or pass -n", llm.ErrNoProvider)
	}
	logger.Info("extracting with %s", provider.Name())

	var spinner *render.Spinner
	if f, ok := stderr.(*os.File); ok && render.IsTerminal(f) {
		spinner = render.NewSpinner(f, render.SpinnerBraille, "finding nuggets with "+provider.Name())
		spinner.Start()
	}
	batch, err := llm.NewExtractor(client, 0).Extract(ctx, pg.Title, text)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return nil, err
	}
	warnDropped(batch)

	if store != nil {
		if err := store.Put(ctx, pg.URL, text, provider.Name(), batch.Nuggets); err != nil {
			logger.Warn("writing cache: %v", err)
		}
	}
	return batch.Nuggets, nil
}

func warnDropped(batch *nugget.Batch) {
	for _, d := range batch.Dropped {
		logger.Warn("dropped %v", d)
	}
}

// layoutBlocks splits the index buffer into paragraphs: one per block
// element, plus any loose text between them.
func layoutBlocks(pg *page.Page, ix *textindex.Index) []render.Block {
	var found []render.Block
	for _, n := range pg.Blocks() {
		start, end, ok := ix.SpanRange(n)
		if !ok {
			continue
		}
		found = append(found, render.Block{Start: start, End: end, Heading: isHeading(n)})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })

	var blocks []render.Block
	pos := 0
	for _, b := range found {
		if b.Start < pos {
			continue
		}
		if b.Start > pos && !render.IsBlank(ix.Text(pos, b.Start)) {
			blocks = append(blocks, render.Block{Start: pos, End: b.Start})
		}
		blocks = append(blocks, b)
		pos = b.End
	}
	if pos < len(ix.Buffer) && !render.IsBlank(ix.Text(pos, len(ix.Buffer))) {
		blocks = append(blocks, render.Block{Start: pos, End: len(ix.Buffer)})
	}
	return blocks
}

func isHeading(n *html.Node) bool {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// pageText is the text sent to the model, one paragraph per block.
func pageText(ix *textindex.Index, blocks []render.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, strings.Join(strings.Fields(ix.Text(b.Start, b.End)), " "))
	}
	return strings.Join(parts, "\n\n")
}

func marks(reg *highlight.Registry, th *theme.Theme) []render.Mark {
	var out []render.Mark
	for _, e := range reg.Entries() {
		start, end := e.Range.Offsets()
		out = append(out, render.Mark{
			Start: start,
			End:   end,
			Style: th.Highlight(e.Nugget.Type),
			Label: e.Nugget.Type.String(),
		})
	}
	return out
}

func report(w io.Writer, outcomes []engine.Outcome) {
	tbl := render.NewTable("", "Type", "Strategy", "Conf", "Start", "End")
	tbl.MaxCell = 32
	tbl.SetAlignment(3, render.AlignRight)
	if f, ok := w.(*os.File); !ok || !render.IsTerminal(f) {
		tbl.BoxStyle = render.ASCIIBox
	}

	found := 0
	for _, o := range outcomes {
		mark := "✗"
		conf := "-"
		if o.Highlighted() {
			mark = "✓"
			conf = fmt.Sprintf("%.2f", o.Confidence)
			found++
		}
		tbl.AddRow(mark, o.Nugget.Type.Label(), o.Strategy.String(), conf, o.Nugget.StartContent, o.Nugget.EndContent)
		if o.Err != nil {
			logger.Debug("%s: %v", o.Key, o.Err)
		}
	}
	if len(outcomes) > 0 {
		fmt.Fprintln(w, tbl.RenderToString())
	}
	fmt.Fprintf(w, "highlighted %d of %d nuggets\n", found, len(outcomes))
}
