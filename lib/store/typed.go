package store

import "github.com/ValentinKolb/dCfg/lib/db"

// --------------------------------------------------------------------------
// Typed Accessors
// --------------------------------------------------------------------------

// Get reads key from s as T. If the value is missing or can not be
// represented as T, def is returned with available=false.
func Get[T db.Scalar](s IStore, key string, def T) (value T, available bool) {
	cell, ok := s.Get(key, db.CellOf(def))
	if !ok {
		return def, false
	}
	v, ok := db.As[T](cell)
	if !ok {
		return def, false
	}
	return v, true
}

// Put writes value under key.
func Put[T db.Scalar](s IStore, key string, value T) bool {
	return s.Put(key, db.CellOf(value))
}

func GetBool(s IStore, key string, def bool) (bool, bool) { return Get(s, key, def) }
func GetInt(s IStore, key string, def int32) (int32, bool) { return Get(s, key, def) }
func GetFloat(s IStore, key string, def float32) (float32, bool) { return Get(s, key, def) }
func GetString(s IStore, key string, def string) (string, bool) { return Get(s, key, def) }
func PutBool(s IStore, key string, value bool) bool { return Put(s, key, value) }
func PutInt(s IStore, key string, value int32) bool { return Put(s, key, value) }
func PutFloat(s IStore, key string, value float32) bool { return Put(s, key, value) }
func PutString(s IStore, key string, value string) bool { return Put(s, key, value) }

// IsList reports whether key holds an array with more than one cell
func IsList(s IStore, key string) bool {
	info, ok := s.KeyInfo(key)
	return ok && info.ArraySize > 1
}
