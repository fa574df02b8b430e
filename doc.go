/*
Package settings stores structured Go values in flat key-value stores that
only know about primitives.

We implement:

1. A Settings interface: string keys, six primitive kinds (int, long,
string, float, double, bool), typed getters with defaults.

2. Backends: MapSettings (in memory), BoltSettings (a Bolt bucket) and
FileSettings (in memory, persisted to an append-only journal).

3. A codec that flattens records, lists, maps, enums and nullable values
into dotted key paths, reads them back, and lists the keys a value occupies
so it can be removed.

4. Setting and NullableSetting, which bind a value to a key for use as a
field or package variable.

# Key layout

Encoding a value of type

	type Profile struct {
		Name    string
		Tags    []string
		Limits  map[string]int32
		Avatar  *Image
	}

under "me" produces

	me.name        = "Andrey"
	me.tags?       = true
	me.tags.size   = 2
	me.tags.0      = "a"
	me.tags.1      = "b"
	me.limits?     = true
	me.limits.size = 1
	me.limits.0    = "daily"     (key)
	me.limits.1    = 10          (value)
	me.avatar?     = false

**Fields.** A record field is stored under <path>.<name>, where name comes
from the `settings` struct tag or the Go field name with its first letter
lowered.

**Presence markers.** <path>? is true for every structure nested below the
root and for present nullable values; it is false for a null value, in
which case <path> itself is removed. Descendants of a value that became
null are left behind.

**Sizes.** Lists and maps store their length at <path>.size. Map entries
alternate key and value, in ascending key order.

**Enums.** Integer types with an EnumNames method are stored as their
ordinal. Decoding an ordinal outside the names is an error.

**Optional fields.** A field tagged `settings:",optional"` may be absent; the
decoder then leaves the value set by SetDefaults, or the zero value.

# Backends

Values never change kind silently: reading a key as a different kind than
it was written reports it as absent.

BoltSettings stores each value as a kind byte followed by either the
8-byte big-endian bit pattern or the raw string bytes.

FileSettings appends one MsgPack change record per Put, Remove or Clear to
a journal (see package journal), replays it on open, and periodically
rewrites it with one record per live key.
*/
package settings
