package tools

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/nao1215/webterm/internal/crawler"
	"github.com/nao1215/webterm/internal/model"
)

// Built-in tool names.
const (
	PageScannerName        = "pageScanner"
	SitePropagatorName     = "sitePropagator"
	SetPageDescriptionName = "setPageDescription"
	SetPageButtonsName     = "setPageButtons"
)

// emptyScan is what pageScanner returns when anything goes wrong.
const emptyScan = "{}"

// Options wires the built-in tools to their collaborators.
type Options struct {
	// Fetcher retrieves pages for pageScanner and sitePropagator.
	Fetcher crawler.Fetcher

	// FetchTimeout is the pageScanner timeout when the model passes none.
	FetchTimeout time.Duration

	// SpiderOptions are applied to every crawl before the per-call arguments,
	// so the model can override depth, page cap and subpath restriction only.
	SpiderOptions []crawler.SpiderOption
}

// NewDefaultRegistry returns the built-in catalog.
func NewDefaultRegistry(opts Options) *Registry {
	r, err := NewRegistry(
		NewPageScanner(opts.Fetcher, opts.FetchTimeout),
		NewSitePropagator(opts.Fetcher, opts.SpiderOptions...),
		NewSetPageDescription(),
		NewSetPageButtons(),
	)
	if err != nil {
		// Built-in names are distinct constants.
		panic(err)
	}
	return r
}

type pageScannerArgs struct {
	URL     string `json:"url"`
	Timeout *int   `json:"timeout"`
}

// NewPageScanner returns the pageScanner tool. It never fails: any problem
// (bad arguments, empty URL, fetch error) yields an empty JSON object.
func NewPageScanner(fetcher crawler.Fetcher, defaultTimeout time.Duration) Tool {
	if defaultTimeout <= 0 {
		defaultTimeout = crawler.DefaultFetchTimeout
	}

	return Tool{
		Name:        PageScannerName,
		Description: "Fetch UI content for one page and return cleaned HTML and clickable elements.",
		Parameters: Schema{Properties: []Property{
			{Name: "url", Type: "string", Description: "Page URL."},
			{Name: "timeout", Type: "integer", Optional: true, Description: "Request timeout in seconds (default 8)."},
		}},
		Handler: func(ctx context.Context, call Call) (Result, error) {
			var args pageScannerArgs
			if err := decodeArgs(call.Arguments, &args); err != nil {
				return Result{Output: emptyScan}, nil
			}
			key := model.NormalizeURL(args.URL)
			if key == "" {
				return Result{Output: emptyScan}, nil
			}

			timeout := defaultTimeout
			if args.Timeout != nil {
				timeout = time.Duration(max(1, *args.Timeout)) * time.Second
			}

			page, err := fetcher.Fetch(ctx, key, timeout)
			if err != nil {
				return Result{Output: emptyScan}, nil
			}
			out, err := json.Marshal(page.Result())
			if err != nil {
				return Result{Output: emptyScan}, nil
			}
			return Result{Output: string(out)}, nil
		},
	}
}

type sitePropagatorArgs struct {
	URL               string `json:"url"`
	Depth             *int   `json:"depth"`
	RestrictToSubpath *bool  `json:"restrictToSubpath"`
	MaxPages          *int   `json:"maxPages"`
}

// NewSitePropagator returns the sitePropagator tool. Each call runs its own
// Spider and returns the new tree, which replaces the caller's working tree.
// When the crawl is cancelled the partial tree is returned with the error.
func NewSitePropagator(fetcher crawler.Fetcher, base ...crawler.SpiderOption) Tool {
	return Tool{
		Name:        SitePropagatorName,
		Description: "Build a same-site page tree from a root URL.",
		Parameters: Schema{Properties: []Property{
			{Name: "url", Type: "string", Description: "Root URL."},
			{Name: "depth", Type: "integer", Optional: true, Description: "Maximum crawl depth, root at 0 (default 1)."},
			{Name: "restrictToSubpath", Type: "boolean", Optional: true, Description: "When true, only crawl URLs under the root path (default true)."},
			{Name: "maxPages", Type: "integer", Optional: true, Description: "Maximum number of pages to include (default 40)."},
		}},
		Handler: func(ctx context.Context, call Call) (Result, error) {
			var args sitePropagatorArgs
			if err := decodeArgs(call.Arguments, &args); err != nil {
				return Result{}, err
			}

			opts := slices.Clone(base)
			depth := crawler.DefaultMaxDepth
			if args.Depth != nil {
				depth = *args.Depth
			}
			pages := crawler.DefaultMaxPages
			if args.MaxPages != nil && *args.MaxPages != 0 {
				pages = *args.MaxPages
			}
			restrict := true
			if args.RestrictToSubpath != nil {
				restrict = *args.RestrictToSubpath
			}
			opts = append(opts,
				crawler.WithMaxDepth(depth),
				crawler.WithMaxPages(pages),
				crawler.WithRestrictToSubpath(restrict),
			)

			// An interrupted crawl still returns the pages it reached.
			tree, err := crawler.NewSpider(fetcher, opts...).Crawl(ctx, args.URL)
			if tree == nil {
				return Result{}, err
			}
			return Result{Output: tree.String(), Tree: tree}, err
		},
	}
}
