package cfgio

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/key"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/tidwall/gjson"
)

// --------------------------------------------------------------------------
// Document model
// --------------------------------------------------------------------------

// docNode is one element of a decoded JSON or XML document.
// Array elements have an empty name.
type docNode struct {
	name     string
	leaf     bool
	value    string // leaf value
	text     string // character data of a non-leaf (XML only), ignored on insert
	children []*docNode
}

type docGroup struct {
	name  string
	nodes []*docNode
}

// groups collects the children of n by name in order of first occurrence
func (n *docNode) groups() []docGroup {
	var out []docGroup
	index := make(map[string]int)
	for _, c := range n.children {
		i, ok := index[c.name]
		if !ok {
			i = len(out)
			index[c.name] = i
			out = append(out, docGroup{name: c.name})
		}
		out[i].nodes = append(out[i].nodes, c)
	}
	return out
}

// --------------------------------------------------------------------------
// Decoders
// --------------------------------------------------------------------------

func decodeJSON(doc string) (*docNode, error) {
	if !gjson.Valid(doc) {
		return nil, store.NewError(store.RetCParseError, "invalid json document")
	}
	root := gjson.Parse(doc)
	if !root.IsObject() {
		return nil, store.NewError(store.RetCParseError, "json document must be an object, got %s", root.Type)
	}
	return jsonNode("", root), nil
}

func jsonNode(name string, r gjson.Result) *docNode {
	n := &docNode{name: name}
	switch {
	case r.IsObject():
		r.ForEach(func(k, v gjson.Result) bool {
			n.children = append(n.children, jsonNode(k.String(), v))
			return true
		})
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			n.children = append(n.children, jsonNode("", v))
			return true
		})
	default:
		n.leaf = true
		n.value = r.String()
	}
	return n
}

func decodeXML(r io.Reader) (*docNode, error) {
	dec := xml.NewDecoder(r)
	root := &docNode{}
	stack := []*docNode{root}
	text := []string{""}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, store.NewError(store.RetCParseError, "invalid xml document: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(t.Attr) > 0 {
				Logger.Debugf("ignoring %d xml attributes of <%s>", len(t.Attr), t.Name.Local)
			}
			n := &docNode{name: t.Name.Local}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
			text = append(text, "")
		case xml.CharData:
			text[len(text)-1] += string(t)
		case xml.EndElement:
			n := stack[len(stack)-1]
			content := strings.TrimSpace(text[len(text)-1])
			if len(n.children) == 0 {
				n.leaf = true
				n.value = content
			} else {
				n.text = content
			}
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}

	if len(stack) != 1 {
		return nil, store.NewError(store.RetCParseError, "invalid xml document: unclosed element <%s>", stack[len(stack)-1].name)
	}
	return root, nil
}

// --------------------------------------------------------------------------
// Insertion
// --------------------------------------------------------------------------

// insertDocument writes every component of doc into d
func insertDocument(d store.IDatabase, doc *docNode) {
	for _, g := range doc.groups() {
		if !key.ValidComponentName(g.name) {
			Logger.Warningf("skipping invalid component name %q", g.name)
			continue
		}
		if !d.HasComponent(g.name) {
			if d.FilterByComponent() {
				Logger.Debugf("skipping filtered component %q", g.name)
				continue
			}
			d.AddComponent(g.name)
		}
		for _, n := range g.nodes {
			insertNode(d, g.name, n)
		}
	}
}

func insertNode(d store.IDatabase, path string, n *docNode) {
	if n.leaf {
		d.Put(path, db.StringCell(n.value))
		return
	}
	if n.text != "" {
		Logger.Warningf("ignoring data %q on non-leaf node %q", n.text, path)
	}

	for _, g := range n.groups() {
		base := path
		if g.name != "" {
			if strings.Contains(g.name, key.Delimiter) {
				Logger.Warningf("skipping node %q below %q: name contains %q", g.name, path, key.Delimiter)
				continue
			}
			base = path + key.Delimiter + g.name
			if len(g.nodes) == 1 {
				insertNode(d, base, g.nodes[0])
				continue
			}
		}

		for i, c := range g.nodes {
			if !c.leaf {
				Logger.Warningf("skipping %s: nested structures inside arrays are not supported", key.WithIndex(base, i))
				continue
			}
			d.Put(key.WithIndex(base, i), db.StringCell(c.value))
		}
	}
}
