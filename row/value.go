// Package row implements the schema-driven row encoder/decoder: the typed
// cell codec, tombstone status byte, and per-column null prefix described
// in spec §3/§4.3.
package row

import "branchdb/schema"

// Kind is the closed tag set for Value, mirroring schema.ColumnType plus
// Null — the "polymorphic cell values" design note in spec §9.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindTimestamp
	KindBoolean
	KindString
)

// Value is a single typed cell. Only the field matching Kind is
// meaningful; Int backs Int32/Int64/Timestamp, Float backs
// Float32/Float64.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

func Null() Value                 { return Value{Kind: KindNull} }
func I32(v int32) Value           { return Value{Kind: KindInt32, Int: int64(v)} }
func I64(v int64) Value           { return Value{Kind: KindInt64, Int: v} }
func F32(v float32) Value         { return Value{Kind: KindFloat32, Float: float64(v)} }
func F64(v float64) Value         { return Value{Kind: KindFloat64, Float: v} }
func Ts(v int32) Value            { return Value{Kind: KindTimestamp, Int: int64(v)} }
func Bool(v bool) Value           { return Value{Kind: KindBoolean, Bool: v} }
func Str(v string) Value          { return Value{Kind: KindString, Str: v} }

// kindForType maps a column's declared type to the Kind a non-null Value
// for that column must carry.
func kindForType(t schema.ColumnType) Kind {
	switch t {
	case schema.Int32:
		return KindInt32
	case schema.Int64:
		return KindInt64
	case schema.Float32:
		return KindFloat32
	case schema.Float64:
		return KindFloat64
	case schema.Timestamp:
		return KindTimestamp
	case schema.Boolean:
		return KindBoolean
	case schema.String:
		return KindString
	default:
		return KindNull
	}
}
