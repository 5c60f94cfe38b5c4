// Package sidecar records the hydrology settings of a run in the Riverscapes
// project file (project.rs.xml) that accompanies the network.
package sidecar

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chrissnell/brat/pkg/hydro"
)

// ProjectFileName is the conventional name of the project file.
const ProjectFileName = "project.rs.xml"

// ElementName is the element holding the regional curve settings.
const ElementName = "StreamflowRegionalCurves"

// ErrNoProject is returned when the project file does not exist.
var ErrNoProject = errors.New("project file not found")

// Entry is what gets recorded for a hydrology run.
type Entry struct {
	Region   int
	Curve    string
	Baseflow string
	Peakflow string
}

// EntryFor builds the entry for region. Overrides replace the curve's own
// equation text; they are recorded verbatim and never evaluated.
func EntryFor(region int, baseflowOverride, peakflowOverride string) Entry {
	curve, _ := hydro.Lookup(region)
	e := Entry{
		Region:   region,
		Curve:    curve.Name,
		Baseflow: curve.BaseflowText,
		Peakflow: curve.PeakflowText,
	}
	if baseflowOverride != "" {
		e.Baseflow = baseflowOverride
	}
	if peakflowOverride != "" {
		e.Peakflow = peakflowOverride
	}
	return e
}

type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []*node    `xml:",any"`
}

func textNode(name, text string) *node {
	return &node{XMLName: xml.Name{Local: name}, Text: text}
}

func (e Entry) node() *node {
	return &node{
		XMLName: xml.Name{Local: ElementName},
		Attrs: []xml.Attr{
			{Name: xml.Name{Local: "description"}, Value: "Regional curve equations for estimating hydrological flow"},
		},
		Nodes: []*node{
			textNode("Region", strconv.Itoa(e.Region)),
			textNode("Curve", e.Curve),
			textNode("BaseflowEquation", e.Baseflow),
			textNode("HighflowEquation", e.Peakflow),
		},
	}
}

// Write adds e to the project file, replacing any entry from an earlier run.
// The entry is placed in the element that holds the network's realization,
// found by the network's path relative to the project directory, or under the
// document root when the network is not listed.
func Write(projectFile, networkPath string, e Entry) error {
	raw, err := os.ReadFile(projectFile)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoProject, projectFile)
	}
	if err != nil {
		return err
	}

	var root node
	if err := xml.Unmarshal(raw, &root); err != nil {
		return fmt.Errorf("parse %s: %w", projectFile, err)
	}
	trimLayout(&root)

	parent := &root
	if networkPath != "" {
		if target := networkParent(&root, relativePath(projectFile, networkPath)); target != nil {
			parent = target
		}
	}
	removeEntries(&root)
	parent.Nodes = append(parent.Nodes, e.node())

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(&root); err != nil {
		return fmt.Errorf("encode %s: %w", projectFile, err)
	}
	buf.WriteByte('\n')

	tmp := projectFile + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, projectFile)
}

// Read returns the entry recorded in the project file, if any.
func Read(projectFile string) (Entry, bool, error) {
	raw, err := os.ReadFile(projectFile)
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, false, fmt.Errorf("%w: %s", ErrNoProject, projectFile)
	}
	if err != nil {
		return Entry{}, false, err
	}

	var root node
	if err := xml.Unmarshal(raw, &root); err != nil {
		return Entry{}, false, fmt.Errorf("parse %s: %w", projectFile, err)
	}

	n := find(&root, func(n *node) bool { return n.XMLName.Local == ElementName })
	if n == nil {
		return Entry{}, false, nil
	}

	var e Entry
	for _, c := range n.Nodes {
		text := strings.TrimSpace(c.Text)
		switch c.XMLName.Local {
		case "Region":
			if e.Region, err = strconv.Atoi(text); err != nil {
				return Entry{}, false, fmt.Errorf("region %q: %w", text, err)
			}
		case "Curve":
			e.Curve = text
		case "BaseflowEquation":
			e.Baseflow = text
		case "HighflowEquation":
			e.Peakflow = text
		}
	}
	return e, true, nil
}

func relativePath(projectFile, networkPath string) string {
	if !filepath.IsAbs(networkPath) {
		return filepath.ToSlash(networkPath)
	}
	rel, err := filepath.Rel(filepath.Dir(projectFile), networkPath)
	if err != nil {
		return filepath.ToSlash(networkPath)
	}
	return filepath.ToSlash(rel)
}

// networkParent finds the element whose text is path and returns its
// grandparent, the realization section holding the network's dataset.
func networkParent(root *node, path string) *node {
	var walk func(n *node, ancestors []*node) *node
	walk = func(n *node, ancestors []*node) *node {
		if strings.TrimSpace(n.Text) == path && len(ancestors) >= 2 {
			return ancestors[len(ancestors)-2]
		}
		for _, c := range n.Nodes {
			if found := walk(c, append(ancestors, n)); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(root, nil)
}

func find(n *node, match func(*node) bool) *node {
	if match(n) {
		return n
	}
	for _, c := range n.Nodes {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func removeEntries(n *node) {
	kept := n.Nodes[:0]
	for _, c := range n.Nodes {
		if c.XMLName.Local == ElementName {
			continue
		}
		removeEntries(c)
		kept = append(kept, c)
	}
	n.Nodes = kept
}

// trimLayout drops the indentation text between child elements so the encoder
// can re-indent the document.
func trimLayout(n *node) {
	if len(n.Nodes) > 0 && strings.TrimSpace(n.Text) == "" {
		n.Text = ""
	}
	for _, c := range n.Nodes {
		trimLayout(c)
	}
}
