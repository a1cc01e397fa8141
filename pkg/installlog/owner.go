package installlog

import "strings"

// OriginalValuesKey is how the Original owner is written in older install
// logs and in backup file names.
const OriginalValuesKey = "ORIGINAL_VALUES"

// OwnerID names who wrote a value: either an installed mod or the state
// that existed before any mod touched the resource.
type OwnerID struct {
	key      string
	original bool
}

// Original is the owner of values that predate every mod.
var Original = OwnerID{original: true}

// ModOwner returns the OwnerID of the mod with the given key.
func ModOwner(key string) OwnerID {
	return OwnerID{key: strings.ToLower(key)}
}

// IsOriginal reports whether o is the Original owner.
func (o OwnerID) IsOriginal() bool { return o.original }

// Key returns the mod key, or "" for Original.
func (o OwnerID) Key() string { return o.key }

// String returns the mod key, or ORIGINAL_VALUES for Original. This is the
// prefix used for backup file names.
func (o OwnerID) String() string {
	if o.original {
		return OriginalValuesKey
	}
	return o.key
}

// Entry is one layer of an ownership stack.
type Entry[V any] struct {
	Owner OwnerID
	Value V
}

// Stack lists the owners of one resource, oldest first. The last entry is
// the current owner. Original, when present, is always first.
type Stack[V any] []Entry[V]

// Current returns the top entry.
func (s Stack[V]) Current() (Entry[V], bool) {
	if len(s) == 0 {
		return Entry[V]{}, false
	}
	return s[len(s)-1], true
}

// Previous returns the entry directly below the top.
func (s Stack[V]) Previous() (Entry[V], bool) {
	if len(s) < 2 {
		return Entry[V]{}, false
	}
	return s[len(s)-2], true
}

// Find returns the entry written by owner.
func (s Stack[V]) Find(owner OwnerID) (Entry[V], bool) {
	if i := s.indexOf(owner); i >= 0 {
		return s[i], true
	}
	return Entry[V]{}, false
}

func (s Stack[V]) indexOf(owner OwnerID) int {
	for i, e := range s {
		if e.Owner == owner {
			return i
		}
	}
	return -1
}

func (s Stack[V]) hasOriginal() bool {
	return len(s) > 0 && s[0].Owner.original
}

// push places v on top for owner. When owner is already on top only the
// value is refreshed; an older entry for owner is dropped first.
func (s Stack[V]) push(owner OwnerID, v V) Stack[V] {
	if top, ok := s.Current(); ok && top.Owner == owner {
		s[len(s)-1].Value = v
		return s
	}
	s = s.remove(owner)
	return append(s, Entry[V]{Owner: owner, Value: v})
}

// replace refreshes owner's value where its entry sits, or pushes a new
// entry on top when owner holds none.
func (s Stack[V]) replace(owner OwnerID, v V) Stack[V] {
	if i := s.indexOf(owner); i >= 0 {
		s[i].Value = v
		return s
	}
	return append(s, Entry[V]{Owner: owner, Value: v})
}

// pushOriginal places v at the bottom unless an Original entry exists.
func (s Stack[V]) pushOriginal(v V) Stack[V] {
	if s.hasOriginal() {
		return s
	}
	return append(Stack[V]{{Owner: Original, Value: v}}, s...)
}

func (s Stack[V]) remove(owner OwnerID) Stack[V] {
	i := s.indexOf(owner)
	if i < 0 {
		return s
	}
	out := make(Stack[V], 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// abandoned reports whether no mod is left managing the resource.
func (s Stack[V]) abandoned() bool {
	return len(s) == 0 || (len(s) == 1 && s[0].Owner.original)
}

func (s Stack[V]) clone(copyValue func(V) V) Stack[V] {
	out := make(Stack[V], len(s))
	for i, e := range s {
		out[i] = Entry[V]{Owner: e.Owner, Value: copyValue(e.Value)}
	}
	return out
}

// Uncover describes what removing a mod's entry from a stack would expose.
type Uncover int

const (
	// NeverTracked means nothing lies below: the resource did not exist
	// before the mod wrote it.
	NeverTracked Uncover = iota
	// HadPriorMod means another mod's value lies below.
	HadPriorMod
	// HadOriginal means the pre-mod value lies below.
	HadOriginal
)

func (u Uncover) String() string {
	switch u {
	case HadPriorMod:
		return "prior-mod"
	case HadOriginal:
		return "original"
	default:
		return "never-tracked"
	}
}

// Uncovered reports what lies directly below owner's entry, with that entry.
func Uncovered[V any](s Stack[V], owner OwnerID) (Uncover, Entry[V]) {
	i := s.indexOf(owner)
	if i <= 0 {
		return NeverTracked, Entry[V]{}
	}
	below := s[i-1]
	if below.Owner.original {
		return HadOriginal, below
	}
	return HadPriorMod, below
}
