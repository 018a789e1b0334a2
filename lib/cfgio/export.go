package cfgio

import (
	"strings"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/key"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/goccy/go-json"
)

// jsonObject is the nested export document. Values are string, []string or
// jsonObject; the encoder writes map keys in sorted order.
type jsonObject map[string]any

// child returns the object stored under name, creating it if needed.
// A scalar stored under name is replaced.
func (o jsonObject) child(name string) jsonObject {
	if c, ok := o[name].(jsonObject); ok {
		return c
	}
	c := jsonObject{}
	o[name] = c
	return c
}

// at returns the object for the given path segments below o
func (o jsonObject) at(segments []string) jsonObject {
	for _, s := range segments {
		o = o.child(s)
	}
	return o
}

func encode(o jsonObject, formatted bool) string {
	var (
		out []byte
		err error
	)
	if formatted {
		out, err = json.MarshalIndentWithOption(o, "", "    ", json.DisableHTMLEscape())
	} else {
		out, err = json.MarshalWithOption(o, json.DisableHTMLEscape())
	}
	if err != nil {
		// the document only holds strings, this can not happen
		Logger.Errorf("can not encode json: %v", err)
		return "{}"
	}
	return string(out)
}

// --------------------------------------------------------------------------
// Export
// --------------------------------------------------------------------------

// AllJSON exports the subtree below k (every component if k is empty) as a
// JSON document. The document always starts at the component level, the
// segments of k become nested objects.
func AllJSON(d store.IDatabase, k string, formatted bool) string {
	root := jsonObject{}
	if k == "" {
		for _, name := range d.ComponentNames() {
			exportNode(d, name, name, root)
		}
		return encode(root, formatted)
	}

	path, _, _, ok := key.Extract(k)
	if !ok {
		Logger.Warningf("can not export invalid key %q", k)
		return encode(root, formatted)
	}
	segments := key.Segments(path)
	exportNode(d, path, segments[len(segments)-1], root.at(segments[:len(segments)-1]))
	return encode(root, formatted)
}

// ComponentJSON exports one component. ok is false if d has no such component.
func ComponentJSON(d store.IDatabase, component string, formatted bool) (string, bool) {
	if !d.HasComponent(component) {
		Logger.Warningf("can not export unknown component %q", component)
		return "", false
	}
	return AllJSON(d, component, formatted), true
}

// exportNode writes the node at path into parent under name
func exportNode(d store.IDatabase, path, name string, parent jsonObject) {
	children := d.GetChildren(path, false)
	info, ok := d.KeyInfo(path)
	if !ok {
		return
	}

	if len(children) == 0 {
		switch {
		case info.ArraySize == 1:
			v, _ := d.Get(path, db.StringCell(""))
			parent[name] = v.StringValue()
		case info.ArraySize > 1:
			values := make([]string, info.ArraySize)
			for i := range values {
				v, _ := d.Get(key.WithIndex(path, i), db.StringCell(""))
				values[i] = v.StringValue()
			}
			parent[name] = values
		}
		return
	}

	if info.ArraySize > 0 {
		Logger.Warningf("omitting value stored at non-leaf node %q", path)
	}
	obj := parent.child(name)
	for _, c := range children {
		exportNode(d, path+key.Delimiter+c, c, obj)
	}
}

// --------------------------------------------------------------------------
// Differences
// --------------------------------------------------------------------------

// Differences returns, as nested JSON, every key of doc whose value is
// missing in d or differs from the value in d. Keys that only exist in d are
// not reported. Leaf names of array values carry their index ("list[2]"), so
// the result can be imported again.
func Differences(d store.IDatabase, doc string, newDatabase store.DatabaseFactory, formatted bool) string {
	tmp := newDatabase("diff", false)
	defer tmp.Clear()

	if err := InsertJSON(tmp, doc); err != nil {
		return encode(jsonObject{}, formatted)
	}

	diff := jsonObject{}
	tmp.Traverse("", func(k, v string) {
		current, ok := d.Get(k, db.StringCell(""))
		if ok && current.StringValue() == v {
			return
		}
		segments := strings.Split(k, key.Delimiter)
		diff.at(segments[:len(segments)-1])[segments[len(segments)-1]] = v
	})
	return encode(diff, formatted)
}
