package udpbench

import (
	"fmt"
	"time"
)

type Family int

const (
	FAMILY_IPV4 Family = 4
	FAMILY_IPV6 Family = 6
)

func (f Family) String() string {
	if f == FAMILY_IPV6 {
		return "inet6"
	}
	return "inet"
}

// HeaderOverhead is the IP plus UDP header length added to each payload.
func (f Family) HeaderOverhead() uint {
	if f == FAMILY_IPV6 {
		return IPV6_HEADER_LEN + UDP_HEADER_LEN
	}
	return IPV4_HEADER_LEN + UDP_HEADER_LEN
}

// Measurement is the result of one timed transfer.
type Measurement struct {
	Dir      Direction
	Count    uint64
	Length   uint // payload plus header overhead
	Duration time.Duration
	Idle     time.Duration
}

func newMeasurement(dir Direction, family Family, count uint64, payloadLen uint, dur time.Duration) Measurement {
	return Measurement{
		Dir:      dir,
		Count:    count,
		Length:   payloadLen + family.HeaderOverhead(),
		Duration: dur,
	}
}

func (m Measurement) Bits() float64 {
	return float64(m.Count) * float64(m.Length)
}

// BitRate divides by the duration truncated to microseconds. A zero duration
// yields zero instead of an infinite rate.
func (m Measurement) BitRate() float64 {
	sec, usec := splitDuration(m.Duration)
	secs := float64(sec) + float64(usec)/1000000.
	if secs <= 0 {
		return 0
	}
	return m.Bits() / secs
}

func (m Measurement) String() string {
	sec, usec := splitDuration(m.Duration)
	return fmt.Sprintf(REPORT_FORMAT, m.Dir, m.Count, m.Length, sec, usec, m.BitRate())
}

func splitDuration(d time.Duration) (sec int64, usec int64) {
	sec = int64(d / time.Second)
	usec = int64((d % time.Second) / time.Microsecond)
	return
}
