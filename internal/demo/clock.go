package demo

import (
	"encoding/binary"
	"time"
)

// CurrentTime encodes t as a Current Time characteristic (0x2A2B): exact
// time 256 followed by the adjust reason.
//
//	year(2) month day hours minutes seconds day_of_week fractions256 adjust_reason
func CurrentTime(t time.Time) []byte {
	b := make([]byte, 10)
	binary.LittleEndian.PutUint16(b[0:], uint16(t.Year()))
	b[2] = byte(t.Month())
	b[3] = byte(t.Day())
	b[4] = byte(t.Hour())
	b[5] = byte(t.Minute())
	b[6] = byte(t.Second())
	b[7] = dayOfWeek(t.Weekday())
	b[8] = byte(t.Nanosecond() * 256 / int(time.Second))
	b[9] = 0
	return b
}

// Monday is 1, Sunday is 7.
func dayOfWeek(d time.Weekday) byte {
	if d == time.Sunday {
		return 7
	}
	return byte(d)
}

// Daylight saving offsets, in 15 minute units.
const (
	dstStandard = 0
	dstDaylight = 4
)

// LocalTimeInformation encodes the zone of t as a Local Time Information
// characteristic (0x2A0F): standard offset from UTC in 15 minute steps and
// the DST offset.
func LocalTimeInformation(t time.Time) []byte {
	_, offset := t.Zone()
	dst := byte(dstStandard)
	if t.IsDST() {
		dst = dstDaylight
		offset -= int(time.Hour / time.Second)
	}
	return []byte{byte(int8(offset / (15 * 60))), dst}
}

// ASCIITime formats t the way asctime does, without the trailing newline.
func ASCIITime(t time.Time) string {
	return t.Format(time.ANSIC)
}
