package uow

// Unit identifies the unit of measure attached to a metric value. The
// vocabulary matches the CloudWatch unit names used by the EMF format;
// other formats are free to ignore units or to map them onto their own
// vocabulary. Unknown units pass through to the output verbatim.
type Unit string

const (
	// UnitNone is the absence of a unit. Values without an explicit
	// unit serialize without a unit annotation.
	UnitNone Unit = "None"

	UnitSeconds      Unit = "Seconds"
	UnitMilliseconds Unit = "Milliseconds"
	UnitMicroseconds Unit = "Microseconds"

	UnitCount   Unit = "Count"
	UnitPercent Unit = "Percent"

	UnitBytes     Unit = "Bytes"
	UnitKilobytes Unit = "Kilobytes"
	UnitMegabytes Unit = "Megabytes"
	UnitGigabytes Unit = "Gigabytes"
	UnitTerabytes Unit = "Terabytes"

	UnitBits     Unit = "Bits"
	UnitKilobits Unit = "Kilobits"
	UnitMegabits Unit = "Megabits"
	UnitGigabits Unit = "Gigabits"
	UnitTerabits Unit = "Terabits"

	UnitCountPerSecond Unit = "Count/Second"
	UnitBytesPerSecond Unit = "Bytes/Second"
	UnitBitsPerSecond  Unit = "Bits/Second"
)

// parseUnit maps the spelling used in `metric:"...,unit=X"` tags onto a
// Unit. The canonical CloudWatch spelling works for every unit. The
// lowercase form is mapped only for the time, count, percent, and
// bytes-through-gigabytes units; other lowercase spellings (bits,
// terabytes, rates) are not mapped. Anything unmapped passes through
// verbatim so that custom backends can define their own vocabulary.
func parseUnit(s string) Unit {
	switch s {
	case "", "none", "None":
		return UnitNone
	case "second", "seconds", "Seconds":
		return UnitSeconds
	case "millisecond", "milliseconds", "Millisecond", "Milliseconds":
		return UnitMilliseconds
	case "microsecond", "microseconds", "Microsecond", "Microseconds":
		return UnitMicroseconds
	case "count", "Count":
		return UnitCount
	case "percent", "Percent":
		return UnitPercent
	case "byte", "bytes", "Bytes":
		return UnitBytes
	case "kilobytes", "Kilobytes":
		return UnitKilobytes
	case "megabytes", "Megabytes":
		return UnitMegabytes
	case "gigabytes", "Gigabytes":
		return UnitGigabytes
	}
	return Unit(s)
}
