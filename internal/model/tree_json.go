package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
)

// treeFile is the on-disk shape of a SiteTree.
type treeFile struct {
	RootURL  *string              `json:"root_url"`
	Nodes    map[string]nodeEntry `json:"nodes"`
	Children map[string][]string  `json:"children"`
}

// nodeEntry is the on-disk shape of a SiteNode. The URL is the map key.
type nodeEntry struct {
	Desc    string   `json:"desc"`
	Buttons []Button `json:"buttons"`
}

// MarshalJSON encodes the tree in its persisted shape.
// Children lists are written sorted so that equal trees produce equal files.
func (t *SiteTree) MarshalJSON() ([]byte, error) {
	file := treeFile{
		Nodes:    make(map[string]nodeEntry, len(t.nodes)),
		Children: make(map[string][]string, len(t.children)),
	}
	if t.root != "" {
		root := t.root
		file.RootURL = &root
	}
	for url, node := range t.nodes {
		buttons := node.Buttons
		if buttons == nil {
			buttons = []Button{}
		}
		file.Nodes[url] = nodeEntry{Desc: node.Description, Buttons: buttons}
	}
	for url, kids := range t.children {
		sorted := slices.Clone(kids)
		sort.Strings(sorted)
		file.Children[url] = sorted
	}
	return json.Marshal(file)
}

// UnmarshalJSON decodes a persisted tree. Adjacency lists are read as sets,
// keys referenced only from children get an empty node, and a root that is
// missing from nodes is created. Cycles are accepted as-is.
func (t *SiteTree) UnmarshalJSON(data []byte) error {
	var file treeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to decode site tree: %w", err)
	}

	loaded := NewSiteTree("")
	for url, entry := range file.Nodes {
		node := loaded.ensureNode(url)
		node.Description = entry.Desc
		if entry.Buttons != nil {
			node.Buttons = entry.Buttons
		}
	}

	// Iterate parents in a stable order so repeated loads keep the same
	// insertion order for traversal.
	parents := make([]string, 0, len(file.Children))
	for parent := range file.Children {
		parents = append(parents, parent)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		loaded.ensureNode(parent)
		for _, child := range file.Children[parent] {
			loaded.Add(parent, child)
		}
	}

	if file.RootURL != nil && *file.RootURL != "" {
		loaded.root = *file.RootURL
		loaded.ensureNode(loaded.root)
	}

	*t = *loaded
	return nil
}

// Save writes the tree to path as indented JSON, creating parent directories.
func (t *SiteTree) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode site tree: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write site tree %s: %w", path, err)
	}
	return nil
}

// LoadSiteTree reads a tree previously written by Save.
func LoadSiteTree(path string) (*SiteTree, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read site tree %s: %w", path, err)
	}
	tree := NewSiteTree("")
	if err := json.Unmarshal(data, tree); err != nil {
		return nil, err
	}
	return tree, nil
}
