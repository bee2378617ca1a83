// Package inspect renders a built GATT tree for humans (Text) and tools (JSON).
package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/srg/gattsrv/internal/bledb"
	"github.com/srg/gattsrv/internal/gatt"
)

// Options controls the text listing.
type Options struct {
	Colors   bool // ANSI colors, for terminals
	Handlers bool // list bound handlers after the flags
}

// NodeInfo is the JSON form of one node.
type NodeInfo struct {
	Kind     string     `json:"kind"`
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	UUID     string     `json:"uuid"`
	Known    string     `json:"known,omitempty"`
	Flags    []string   `json:"flags,omitempty"`
	Handlers []string   `json:"handlers,omitempty"`
	Children []NodeInfo `json:"children,omitempty"`
}

// Document is the JSON form of a tree.
type Document struct {
	Root     string     `json:"root"`
	Nodes    int        `json:"nodes"`
	Services []NodeInfo `json:"services"`
}

type palette struct {
	kind, name, uuid, known, flags, handlers *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		kind:     color.New(color.Bold),
		name:     color.New(color.FgCyan),
		uuid:     color.New(color.FgYellow),
		known:    color.New(color.Faint),
		flags:    color.New(color.FgGreen),
		handlers: color.New(color.FgMagenta),
	}
	for _, c := range []*color.Color{p.kind, p.name, p.uuid, p.known, p.flags, p.handlers} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Text writes an indented listing of tree to w, one node per line:
//
//	/com/gattsrv (3 nodes)
//	service battery (180f) Battery Service
//	  characteristic level (2a19) Battery Level [read, notify] <read, update>
func Text(w io.Writer, tree *gatt.Tree, opts Options) error {
	p := newPalette(opts.Colors)
	if _, err := fmt.Fprintf(w, "%s (%d nodes)\n", tree.Root(), tree.Len()); err != nil {
		return err
	}
	return tree.Walk(func(n *gatt.Node) error {
		var b strings.Builder
		b.WriteString(strings.Repeat("  ", n.Depth()))
		b.WriteString(p.kind.Sprint(n.Kind().String()))
		b.WriteByte(' ')
		b.WriteString(p.name.Sprint(n.Name()))
		b.WriteString(" (" + p.uuid.Sprint(n.UUID().String()) + ")")
		if known := KnownName(n); known != "" {
			b.WriteString(" " + p.known.Sprint(known))
		}
		if n.Flags().Len() > 0 {
			b.WriteString(" " + p.flags.Sprint("["+strings.Join(n.Flags().Strings(), ", ")+"]"))
		}
		if opts.Handlers {
			if hs := Handlers(n); len(hs) > 0 {
				b.WriteString(" " + p.handlers.Sprint("<"+strings.Join(hs, ", ")+">"))
			}
		}
		b.WriteByte('\n')
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// KnownName returns the assigned name of the node's UUID for its kind, or "".
func KnownName(n *gatt.Node) string {
	u := n.UUID().String()
	switch n.Kind() {
	case gatt.KindService:
		return bledb.LookupService(u)
	case gatt.KindCharacteristic:
		return bledb.LookupCharacteristic(u)
	case gatt.KindDescriptor:
		return bledb.LookupDescriptor(u)
	}
	return ""
}

// Handlers lists the handlers bound to n: read, write, update and event/N
// for an event every N ticks.
func Handlers(n *gatt.Node) []string {
	var out []string
	if n.HasRead() {
		out = append(out, "read")
	}
	if n.HasWrite() {
		out = append(out, "write")
	}
	if n.HasUpdate() {
		out = append(out, "update")
	}
	if n.HasEvent() {
		out = append(out, fmt.Sprintf("event/%d", n.Binding().Event.Interval))
	}
	return out
}

// Describe converts tree to its JSON document form.
func Describe(tree *gatt.Tree) Document {
	doc := Document{Root: tree.Root(), Nodes: tree.Len(), Services: []NodeInfo{}}
	for _, svc := range tree.Services() {
		doc.Services = append(doc.Services, describeNode(svc))
	}
	return doc
}

func describeNode(n *gatt.Node) NodeInfo {
	info := NodeInfo{
		Kind:     n.Kind().String(),
		Name:     n.Name(),
		Path:     n.Path(),
		UUID:     n.UUID().String(),
		Known:    KnownName(n),
		Flags:    n.Flags().Strings(),
		Handlers: Handlers(n),
	}
	for _, c := range n.Children() {
		info.Children = append(info.Children, describeNode(c))
	}
	return info
}

// JSON returns the indented JSON document for tree.
func JSON(tree *gatt.Tree) ([]byte, error) {
	return json.MarshalIndent(Describe(tree), "", "  ")
}
