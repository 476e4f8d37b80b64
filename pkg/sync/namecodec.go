package sync

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sidkik/remote-mirror/pkg/errors"
)

// Remote accounts can't store custom metadata, so the modification time of
// each uploaded file is encoded into its remote name:
//
//	photo.jpeg -> photo_[[2016-1-1-0-0-0]].jpeg
//
// This format is shared with every previous run of the mirror and must not
// change.
var encodedNameRegexp = regexp.MustCompile(
	`^(.*)_\[\[(\d+)-(\d+)-(\d+)-(\d+)-(\d+)-(\d+)\]\](\..*)?$`)

// EncodeName returns the remote name for a file named `name` that was last
// modified at `modTime`. Sub-second precision is lost.
func EncodeName(name string, modTime time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	t := modTime.UTC()
	return fmt.Sprintf("%s_[[%d-%d-%d-%d-%d-%d]]%s", base,
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), ext)
}

// DecodeName is the inverse of EncodeName. It returns MalformedRemoteName if
// the name doesn't contain a valid timestamp.
func DecodeName(remoteName string) (string, time.Time, error) {
	match := encodedNameRegexp.FindStringSubmatch(remoteName)
	if match == nil {
		return "", time.Time{}, errors.MalformedRemoteName{Name: remoteName}
	}

	var fields [6]int
	for i := range fields {
		val, err := strconv.Atoi(match[i+2])
		if err != nil {
			return "", time.Time{}, errors.MalformedRemoteName{Name: remoteName}
		}
		fields[i] = val
	}

	modTime := time.Date(fields[0], time.Month(fields[1]), fields[2],
		fields[3], fields[4], fields[5], 0, time.UTC)

	// time.Date normalizes out of range values (e.g. month 13), which would
	// silently decode to a different time than the one that was encoded.
	if modTime.Year() != fields[0] || int(modTime.Month()) != fields[1] ||
		modTime.Day() != fields[2] || modTime.Hour() != fields[3] ||
		modTime.Minute() != fields[4] || modTime.Second() != fields[5] {
		return "", time.Time{}, errors.MalformedRemoteName{Name: remoteName}
	}

	return match[1] + match[8], modTime, nil
}

// EncodeFolderName returns the remote name for a folder. Folders don't track
// modification times, so their names are unchanged.
func EncodeFolderName(name string) string {
	return name
}
