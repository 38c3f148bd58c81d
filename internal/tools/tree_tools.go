package tools

import (
	"context"
	"fmt"

	"github.com/nao1215/webterm/internal/model"
)

// SetPageDescription sets the description of the node for NormalizeURL(url)
// and returns the same tree. Buttons and other nodes are not touched.
// A missing node (or a nil tree) fails with model.ErrNodeNotFound.
func SetPageDescription(url, description string, tree *model.SiteTree) (*model.SiteTree, error) {
	if tree == nil {
		return nil, fmt.Errorf("%w: %q", model.ErrNodeNotFound, url)
	}
	if err := tree.SetDescription(url, description); err != nil {
		return nil, err
	}
	return tree, nil
}

// SetPageButtons replaces the button list of the node for NormalizeURL(url)
// and returns the same tree.
func SetPageButtons(url string, buttons []model.Button, tree *model.SiteTree) (*model.SiteTree, error) {
	if tree == nil {
		return nil, fmt.Errorf("%w: %q", model.ErrNodeNotFound, url)
	}
	if err := tree.SetButtons(url, buttons); err != nil {
		return nil, err
	}
	return tree, nil
}

type setDescriptionArgs struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// NewSetPageDescription returns the setPageDescription tool.
func NewSetPageDescription() Tool {
	return Tool{
		Name:        SetPageDescriptionName,
		Description: "Set or update the description for a URL node in the SiteTree.",
		Parameters: Schema{Properties: []Property{
			{Name: "url", Type: "string", Description: "Node URL."},
			{Name: "description", Type: "string", Description: "Page summary."},
		}},
		NeedsTree: true,
		Handler: func(_ context.Context, call Call) (Result, error) {
			var args setDescriptionArgs
			if err := decodeArgs(call.Arguments, &args); err != nil {
				return Result{}, err
			}
			tree, err := SetPageDescription(args.URL, args.Description, call.Tree)
			if err != nil {
				return Result{}, err
			}
			return Result{
				Output: fmt.Sprintf("Description set for %s.", model.NormalizeURL(args.URL)),
				Tree:   tree,
			}, nil
		},
	}
}

type setButtonsArgs struct {
	URL     string         `json:"url"`
	Buttons []model.Button `json:"buttons"`
}

// NewSetPageButtons returns the setPageButtons tool.
func NewSetPageButtons() Tool {
	return Tool{
		Name:        SetPageButtonsName,
		Description: "Set or update clickable elements for a URL node in the SiteTree.",
		Parameters: Schema{Properties: []Property{
			{Name: "url", Type: "string", Description: "Node URL."},
			{Name: "buttons", Type: "array", Items: &Schema{Properties: []Property{
				{Name: "selector", Type: "string", Description: "CSS selector for the element."},
				{Name: "text", Type: "string", Description: "Visible label for the element."},
			}}},
		}},
		NeedsTree: true,
		Handler: func(_ context.Context, call Call) (Result, error) {
			var args setButtonsArgs
			if err := decodeArgs(call.Arguments, &args); err != nil {
				return Result{}, err
			}
			tree, err := SetPageButtons(args.URL, args.Buttons, call.Tree)
			if err != nil {
				return Result{}, err
			}
			return Result{
				Output: fmt.Sprintf("%d buttons set for %s.", len(args.Buttons), model.NormalizeURL(args.URL)),
				Tree:   tree,
			}, nil
		},
	}
}
