package client

import (
	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/key"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/ValentinKolb/dCfg/lib/store/ostore"
	"github.com/ValentinKolb/dCfg/rpc/common"
)

var _ store.IStore = (*ConfigClient)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (c *ConfigClient) Put(key string, value db.Cell) bool {
	return c.PutFrom(ostore.SourceComponent, key, value)
}

func (c *ConfigClient) Get(key string, def db.Cell) (db.Cell, bool) {
	if v, ok := c.store.Get(key, def); ok || !c.isOtherComponent(key) {
		return v, ok
	}

	kind := def.Kind()
	if def.IsUnset() {
		kind = db.KindString
	}
	reply, ok := c.requestValue(key, common.ValueType(kind.String()), def.String())
	if !ok {
		return def, false
	}

	v, converted := db.StringCell(reply.Value).Convert(kind)
	if !converted {
		Logger.Warningf("client %s: value %q of %s from server is no %s", c.name, reply.Value, key, kind)
		return def, false
	}
	return v, reply.Found
}

func (c *ConfigClient) GetStringList(key string, def []string) ([]string, bool) {
	if values, ok := c.store.GetStringList(key, def); ok || !c.isOtherComponent(key) {
		return values, ok
	}

	reply, ok := c.requestValue(key, common.ValueTStringList, common.JoinList(def))
	if !ok {
		return def, false
	}
	return common.SplitList(reply.Value), reply.Found
}

func (c *ConfigClient) GetChildren(key string, fullPath bool) []string {
	if children := c.store.GetChildren(key, fullPath); len(children) > 0 || !c.isOtherComponent(key) {
		return children
	}

	reply, ok := c.requestValue(key, common.ValueTChildren, "")
	if !ok || !reply.Found {
		return nil
	}
	children := common.SplitList(reply.Value)
	if fullPath {
		for i, child := range children {
			children[i] = key + ":" + child
		}
	}
	return children
}

func (c *ConfigClient) Exists(key string) bool {
	return c.store.Exists(key)
}

func (c *ConfigClient) KeyInfo(key string) (store.KeyInfo, bool) {
	return c.store.KeyInfo(key)
}

// --------------------------------------------------------------------------
// Layered writes
// --------------------------------------------------------------------------

// PutFrom writes a value of the own component as if it came from src. Keys
// of other components are dropped.
func (c *ConfigClient) PutFrom(src ostore.Source, key string, value db.Cell) bool {
	if c.isOtherComponent(key) {
		Logger.Warningf("client %s: can not put %s, it belongs to another component", c.name, key)
		return false
	}
	ok := c.store.PutFrom(src, key, value)
	if ok && c.store.IsInitFinished() {
		c.markDirty()
	}
	return ok
}

// InsertJSONFrom merges a JSON document as if it came from src. Only the own
// component is kept.
func (c *ConfigClient) InsertJSONFrom(src ostore.Source, doc string) error {
	err := c.store.InsertJSONFrom(src, doc)
	if err == nil && c.store.IsInitFinished() {
		c.markDirty()
	}
	return err
}

// PutCfgFrom imports a .json or .xml file as if it came from src. Only the
// own component is kept.
func (c *ConfigClient) PutCfgFrom(src ostore.Source, path string) error {
	err := c.store.PutCfgFrom(src, path)
	if err == nil && c.store.IsInitFinished() {
		c.markDirty()
	}
	return err
}

// isOtherComponent reports whether k addresses a component other than the
// own one
func (c *ConfigClient) isOtherComponent(k string) bool {
	return key.ComponentName(k) != c.name
}
