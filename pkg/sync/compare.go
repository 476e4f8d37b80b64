package sync

import (
	"encoding/binary"
	"hash/fnv"
	"strings"
)

// Equal returns whether two items are the same for the purposes of mirroring.
// Items that aren't equal are deleted and re-uploaded.
func Equal(a, b Item) bool {
	if a.Kind != b.Kind || a.Name != b.Name || a.Path != b.Path || a.Size != b.Size {
		return false
	}

	if a.Kind == Folder {
		return true
	}

	if a.ModTime.IsZero() || b.ModTime.IsZero() {
		return a.ModTime.IsZero() && b.ModTime.IsZero()
	}
	return truncateTime(a.ModTime).Equal(truncateTime(b.ModTime))
}

// Hash returns a hash of the fields used by Equal. Equal items always have
// the same hash.
func Hash(item Item) uint32 {
	hasher := fnv.New32a()
	hasher.Write([]byte(strings.ToLower(item.Name)))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(item.Size))
	hasher.Write(buf[:])
	hasher.Write([]byte{byte(item.Kind)})

	if item.Kind == File && !item.ModTime.IsZero() {
		t := item.ModTime.UTC()
		for _, field := range []int{t.Year(), int(t.Month()), t.Day(),
			t.Hour(), t.Minute(), t.Second()} {
			binary.LittleEndian.PutUint64(buf[:], uint64(field))
			hasher.Write(buf[:])
		}
	}
	return hasher.Sum32()
}

// Except returns the items in `a` that have no equal item in `b`, in the
// order they appear in `a`. Duplicates in `a` aren't merged: two remote
// nodes with the same path and timestamp each get their own item, and so
// their own delete command.
func Except(a, b []Item) []Item {
	buckets := map[uint32][]Item{}
	for _, item := range b {
		hash := Hash(item)
		buckets[hash] = append(buckets[hash], item)
	}

	var diff []Item
	for _, item := range a {
		found := false
		for _, candidate := range buckets[Hash(item)] {
			if Equal(item, candidate) {
				found = true
				break
			}
		}

		if !found {
			diff = append(diff, item)
		}
	}
	return diff
}
