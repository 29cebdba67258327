package query

import (
	"cmp"
	"time"
)

type keyKind uint8

const (
	keyNumber keyKind = iota
	keyTime
)

// Key is a value of a plan's sort key expression for one row.
type Key struct {
	kind keyKind
	num  float64
	at   time.Time
}

// NumberKey returns a numeric key (score, relevance, follower count).
func NumberKey(v float64) Key {
	return Key{kind: keyNumber, num: v}
}

// TimeKey returns a timestamp key.
func TimeKey(t time.Time) Key {
	return Key{kind: keyTime, at: t}
}

// IsTime reports whether k is a timestamp key.
func (k Key) IsTime() bool {
	return k.kind == keyTime
}

// Number returns the numeric value of k.
func (k Key) Number() float64 {
	return k.num
}

// Time returns the timestamp value of k.
func (k Key) Time() time.Time {
	return k.at
}

// Value returns k as a SQL argument.
func (k Key) Value() any {
	if k.kind == keyTime {
		return k.at
	}
	return k.num
}

// Compare returns -1, 0 or +1 as k sorts before, equal to, or after o in
// ascending order. Keys of different kinds are never compared by a plan.
func (k Key) Compare(o Key) int {
	if k.kind == keyTime {
		return k.at.Compare(o.at)
	}
	return cmp.Compare(k.num, o.num)
}

// Boundary is the resolved position of a cursor: the key and id of the first
// row of the requested page.
type Boundary struct {
	Key Key
	ID  string
}

// Admits reports whether a row with the given key and id is on or after the
// boundary in (key DESC, id ASC) order:
//
//	K < K(c) OR (K == K(c) AND id >= c.id)
func (b Boundary) Admits(k Key, id string) bool {
	c := k.Compare(b.Key)
	return c < 0 || (c == 0 && id >= b.ID)
}

// Less orders rows by (key DESC, id ASC).
func Less(ak Key, aid string, bk Key, bid string) bool {
	if c := ak.Compare(bk); c != 0 {
		return c > 0
	}
	return aid < bid
}

// Trim applies the fetch-one-extra rule to rows fetched with Limit = n+1.
// It returns at most n rows and, when an extra row was present, its id as
// the next cursor.
func Trim[T any](rows []T, n int, id func(T) string) ([]T, string) {
	if len(rows) <= n {
		return rows, ""
	}
	return rows[:n], id(rows[n])
}
