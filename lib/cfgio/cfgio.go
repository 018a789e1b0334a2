package cfgio

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("cfgio")

// Supported file extensions
const (
	ExtJSON = ".json"
	ExtXML  = ".xml"
)

// --------------------------------------------------------------------------
// Import
// --------------------------------------------------------------------------

// PutCfg imports the file at path into d, the format is chosen by extension.
//
// Every failure (missing file, unknown extension, parse error) is logged and
// leaves d unchanged. The returned error only informs the caller, it is safe
// to ignore.
func PutCfg(d store.IDatabase, path string) error {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		Logger.Warningf("config file %s does not exist", path)
		return store.NewError(store.RetCInternalError, "config file %s does not exist", path)
	}
	if err != nil {
		Logger.Warningf("can not read config file %s: %v", path, err)
		return store.NewError(store.RetCInternalError, "read %s: %v", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ExtJSON:
		err = InsertJSON(d, string(content))
	case ExtXML:
		err = InsertXML(d, bytes.NewReader(content))
	default:
		Logger.Warningf("config file %s has unsupported extension %q", path, ext)
		return store.NewError(store.RetCUnsupportedFormat, "unsupported config file extension %q", ext)
	}

	if err != nil {
		Logger.Warningf("config file %s: %v", path, err)
		return err
	}
	Logger.Debugf("imported config file %s into %s", path, d.RootName())
	return nil
}

// InsertJSON merges a JSON document into d (add or overwrite, nothing is
// removed). Invalid documents are logged and ignored.
func InsertJSON(d store.IDatabase, doc string) error {
	root, err := decodeJSON(doc)
	if err != nil {
		Logger.Warningf("can not insert json into %s: %v", d.RootName(), err)
		return err
	}
	insertDocument(d, root)
	return nil
}

// InsertXML merges an XML document into d, see InsertJSON
func InsertXML(d store.IDatabase, r io.Reader) error {
	root, err := decodeXML(r)
	if err != nil {
		Logger.Warningf("can not insert xml into %s: %v", d.RootName(), err)
		return err
	}
	insertDocument(d, root)
	return nil
}

// --------------------------------------------------------------------------
// File export
// --------------------------------------------------------------------------

// WriteCfg writes every component of d as JSON to path.
// The file is written to a temporary sibling first and renamed into place.
func WriteCfg(d store.IDatabase, path string, formatted bool) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ExtJSON {
		return store.NewError(store.RetCUnsupportedFormat, "can only write %s files, got %q", ExtJSON, ext)
	}

	content := AllJSON(d, "", formatted)

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return store.NewError(store.RetCInternalError, "create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return store.NewError(store.RetCInternalError, "write %s: %v", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return store.NewError(store.RetCInternalError, "close %s: %v", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return store.NewError(store.RetCInternalError, "rename to %s: %v", path, err)
	}
	return nil
}
