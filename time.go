package mcs

import (
	"fmt"
	"time"
)

// mjdUnixEpoch is the Modified Julian Day of 1970-01-01 UTC.
const mjdUnixEpoch = 40587

const millisPerDay = 24 * 3600 * 1000

// TimeToMJDMPM converts a timestamp to its wire representation: the
// Modified Julian Day of its UTC calendar date and the milliseconds
// past UTC midnight. Sub-millisecond precision is discarded.
func TimeToMJDMPM(t time.Time) (mjd, mpm int64) {
	t = t.UTC()
	sec := t.Unix()
	day := sec / 86400
	rem := sec % 86400
	if rem < 0 {
		day--
		rem += 86400
	}
	mjd = mjdUnixEpoch + day
	mpm = rem*1000 + int64(t.Nanosecond())/1e6
	return mjd, mpm
}

// MJDMPMToTime is the inverse of TimeToMJDMPM. The conversion is exact
// integer arithmetic; the round trip is the identity at millisecond
// granularity.
func MJDMPMToTime(mjd, mpm int64) time.Time {
	sec := (mjd-mjdUnixEpoch)*86400 + mpm/1000
	ms := mpm % 1000
	return time.Unix(sec, ms*1e6).UTC()
}

// Now returns the current MJD and MPM.
func Now() (mjd, mpm int64) {
	return TimeToMJDMPM(time.Now())
}

// ValidMPM reports whether mpm lies in the legal 0..86,399,999 range.
func ValidMPM(mpm int64) bool {
	return mpm >= 0 && mpm < millisPerDay
}

// RawToHex renders raw bytes as printable uppercase hex, two characters
// per byte.
func RawToHex(raw []byte) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 2*len(raw))
	for i, b := range raw {
		out[2*i] = digits[b>>4]
		out[2*i+1] = digits[b&0x0f]
	}
	return string(out)
}

// FormatStamp renders a timestamp in the YYMMDD HH:MM:SS form used by
// the task log and the MIB reader utilities.
func FormatStamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%02d%02d%02d %02d:%02d:%02d",
		t.Year()%100, int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second())
}
