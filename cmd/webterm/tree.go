package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/webterm/internal/config"
	"github.com/nao1215/webterm/internal/model"
	"github.com/nao1215/webterm/internal/service"
)

// errTreeSource is returned when tree or ask get no tree, or more than one.
var errTreeSource = errors.New("specify exactly one tree source: a JSON file, --root, or --id")

// NewTreeCmd creates the tree command.
func NewTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [file]",
		Short: "Show a saved site tree",
		Long: `Tree prints a site tree saved with scan --save, or a snapshot from the
database (the latest one of a site with --root, or a specific one with --id).

Examples:
  # Print the tree saved by scan --save
  webterm tree example.json

  # Print the latest stored tree of a site as labelled rows
  webterm tree --root https://example.com --rows

  # Print a stored snapshot as JSON
  webterm tree --id 4f1c... --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTreeCmd,
	}

	addTreeSourceFlags(cmd)
	cmd.Flags().Bool("rows", false,
		"Print one labelled row per page with its description status")
	cmd.Flags().BoolP("json", "j", false,
		"Print the tree in its JSON file format")

	return cmd
}

// addTreeSourceFlags registers the flags that pick a stored tree.
func addTreeSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("root", "",
		"Use the latest stored tree of this site")
	cmd.Flags().String("id", "",
		"Use the stored tree with this snapshot ID")
	addDatabaseFlags(cmd, false)
}

// treeSource is where a tree is read from. Exactly one field is set.
type treeSource struct {
	file  string
	root  string
	id    string
	dbDir string
}

// readTreeSource reads the tree source from the file argument and flags.
func readTreeSource(cmd *cobra.Command, file string) (treeSource, error) {
	src := treeSource{file: file}
	var err error
	if src.root, err = cmd.Flags().GetString("root"); err != nil {
		return src, err
	}
	if src.id, err = cmd.Flags().GetString("id"); err != nil {
		return src, err
	}
	if src.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return src, err
	}
	if src.dbDir == "" {
		src.dbDir = config.XDGDataDir()
	}

	set := 0
	for _, v := range []string{src.file, src.root, src.id} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return src, errTreeSource
	}
	return src, nil
}

// loadTree loads the tree of src into svc.
func loadTree(ctx context.Context, svc *service.Service, src treeSource) error {
	if src.file != "" {
		return svc.Load(src.file)
	}

	store, err := openExistingStore(src.dbDir)
	if err != nil {
		return err
	}
	defer store.Close()

	var rep *model.ScanReport
	if src.id != "" {
		rep, err = store.TreeByID(ctx, src.id)
	} else {
		rep, err = store.LatestTree(ctx, model.NormalizeURL(src.root))
	}
	if err != nil {
		return err
	}
	if rep == nil || rep.Tree == nil {
		return fmt.Errorf("no stored site tree for %s%s", src.root, src.id)
	}
	return svc.Restore(rep.Tree)
}

// runTreeCmd executes the tree command.
func runTreeCmd(cmd *cobra.Command, args []string) error {
	file := ""
	if len(args) == 1 {
		file = args[0]
	}
	src, err := readTreeSource(cmd, file)
	if err != nil {
		return err
	}
	rows, err := cmd.Flags().GetBool("rows")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	svc := service.New(nil, nil, service.WithLogger(setupLogger(getVerboseFlag(cmd))))
	if err := loadTree(cmd.Context(), svc, src); err != nil {
		return err
	}
	return printTree(cmd.OutOrStdout(), svc, rows, asJSON)
}

// printTree writes the current tree of svc in the requested form.
func printTree(w io.Writer, svc *service.Service, rows, asJSON bool) error {
	tree, err := svc.Tree()
	if err != nil {
		return err
	}

	switch {
	case asJSON:
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case rows:
		for _, row := range svc.Rows() {
			mark := "[ ]"
			if row.Progress >= 1 {
				mark = "[x]"
			}
			if _, err := fmt.Fprintf(w, "%s %s\t%s\n", mark, row.Text, row.URL); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err = fmt.Fprintln(w, tree.String())
		return err
	}
}
