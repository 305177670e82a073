// Package stamp encodes the timestamp-partitioned storage layout from the
// token embedded in finalized file names.
package stamp

import (
	"path/filepath"
	"regexp"
	"strconv"
)

// pattern matches the fixed "_YYMMDD_HHMMSS.<ext>" suffix of finalized
// recording artifacts.
var pattern = regexp.MustCompile(`_(\d{6})_(\d{6})\.(mp4|srt)$`)

// Stamp holds the literal digit groups captured from a file name. The digits
// are not calendar-validated: a month of "13" partitions into a "13"
// directory, matching the producer's best-effort naming contract.
type Stamp struct {
	Year  int // two-digit year offset + 2000
	Month string
	Day   string
	Hour  string
	Ext   string
}

// Parse tests a base name against the timestamp suffix. A false return means
// the file is not eligible for relocation and must be left in place.
func Parse(name string) (Stamp, bool) {
	match := pattern.FindStringSubmatch(name)
	if match == nil {
		return Stamp{}, false
	}
	date, clock, ext := match[1], match[2], match[3]

	year, err := strconv.Atoi(date[:2])
	if err != nil {
		return Stamp{}, false
	}
	return Stamp{
		Year:  2000 + year,
		Month: date[2:4],
		Day:   date[4:6],
		Hour:  clock[:2],
		Ext:   ext,
	}, true
}

// PartitionDir returns the 4-level destination directory under root:
// root/YYYY/MM/DD/HH.
func (s Stamp) PartitionDir(root string) string {
	return filepath.Join(root, strconv.Itoa(s.Year), s.Month, s.Day, s.Hour)
}
