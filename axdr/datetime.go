package axdr

import (
	"bytes"
	"fmt"
	"time"

	"github.com/enercore/libcosem-go/base"
)

// Calendar wildcard bytes from the COSEM date-time encoding. 0xFF (or 0xFFFF
// for the year) means "not specified", 0xFE/0xFD carry the last-day and
// daylight conventions for day of month.
const (
	NotSpecifiedByte = 0xff
	NotSpecifiedYear = 0xffff

	DateTimeInvalidDeviation int16 = -32768
)

type DlmsDate struct {
	Year      uint16
	Month     byte
	Day       byte
	DayOfWeek byte
}

type DlmsTime struct {
	Hour       byte
	Minute     byte
	Second     byte
	Hundredths byte
}

type DlmsDateTime struct {
	Date      DlmsDate
	Time      DlmsTime
	Deviation int16
	Status    byte
}

func (d *DlmsDate) validate() error {
	if d.Month > 12 && d.Month < 0xfd {
		return fmt.Errorf("%w: month %d", base.ErrInvalidFieldValue, d.Month)
	}
	if d.Month == 0 {
		return fmt.Errorf("%w: month 0", base.ErrInvalidFieldValue)
	}
	if d.Day > 31 && d.Day < 0xfd {
		return fmt.Errorf("%w: day %d", base.ErrInvalidFieldValue, d.Day)
	}
	if d.Day == 0 {
		return fmt.Errorf("%w: day 0", base.ErrInvalidFieldValue)
	}
	if (d.DayOfWeek < 1 || d.DayOfWeek > 7) && d.DayOfWeek != NotSpecifiedByte {
		return fmt.Errorf("%w: day of week %d", base.ErrInvalidFieldValue, d.DayOfWeek)
	}
	return nil
}

func (t *DlmsTime) validate() error {
	if t.Hour > 23 && t.Hour != NotSpecifiedByte {
		return fmt.Errorf("%w: hour %d", base.ErrInvalidFieldValue, t.Hour)
	}
	if t.Minute > 59 && t.Minute != NotSpecifiedByte {
		return fmt.Errorf("%w: minute %d", base.ErrInvalidFieldValue, t.Minute)
	}
	if t.Second > 59 && t.Second != NotSpecifiedByte {
		return fmt.Errorf("%w: second %d", base.ErrInvalidFieldValue, t.Second)
	}
	if t.Hundredths > 99 && t.Hundredths != NotSpecifiedByte {
		return fmt.Errorf("%w: hundredths %d", base.ErrInvalidFieldValue, t.Hundredths)
	}
	return nil
}

func (t *DlmsDateTime) validate() error {
	if err := t.Date.validate(); err != nil {
		return err
	}
	if err := t.Time.validate(); err != nil {
		return err
	}
	if (t.Deviation < -720 || t.Deviation > 720) && t.Deviation != DateTimeInvalidDeviation {
		return fmt.Errorf("%w: deviation %d", base.ErrInvalidFieldValue, t.Deviation)
	}
	return nil
}

func (t *DlmsDateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%02d UTC%+03d Status: %02x",
		t.Date.Year, t.Date.Month, t.Date.Day,
		t.Time.Hour, t.Time.Minute, t.Time.Second, t.Time.Hundredths, t.Deviation, t.Status)
}

func (t *DlmsDateTime) ToTime() (tt time.Time, err error) {
	if t.Date.Year == NotSpecifiedYear || t.Date.Month >= 0xfd || t.Date.Day >= 0xfd || t.Time.Hour == NotSpecifiedByte || t.Time.Minute == NotSpecifiedByte {
		return tt, fmt.Errorf("%w: wildcard date or time", base.ErrInvalidFieldValue)
	}
	ns := 0
	if t.Time.Hundredths != NotSpecifiedByte {
		ns = int(t.Time.Hundredths) * 10000000
	}
	dev := 0
	if t.Deviation != DateTimeInvalidDeviation {
		dev = int(t.Deviation)
	}
	tt = time.Date(int(t.Date.Year), time.Month(t.Date.Month), int(t.Date.Day), int(t.Time.Hour), int(t.Time.Minute), int(t.Time.Second), ns, time.FixedZone("UTC", dev*60))
	return
}

func NewDlmsDateTimeFromTime(src time.Time) DlmsDateTime {
	wd := byte(src.Weekday())
	if wd == 0 {
		wd = 7
	}
	_, off := src.Zone()
	return DlmsDateTime{
		Date:      DlmsDate{Year: uint16(src.Year()), Month: byte(src.Month()), Day: byte(src.Day()), DayOfWeek: wd},
		Time:      DlmsTime{Hour: byte(src.Hour()), Minute: byte(src.Minute()), Second: byte(src.Second()), Hundredths: byte(src.Nanosecond() / 10000000)},
		Deviation: int16(off / 60),
		Status:    0,
	}
}

func NewDlmsDateFromSlice(src []byte) (val DlmsDate, err error) {
	if len(src) < 5 {
		err = fmt.Errorf("%w: date needs 5 bytes", base.ErrTruncatedInput)
		return
	}
	val = DlmsDate{Year: uint16(src[0])<<8 | uint16(src[1]), Month: src[2], Day: src[3], DayOfWeek: src[4]}
	err = val.validate()
	return
}

func NewDlmsTimeFromSlice(src []byte) (val DlmsTime, err error) {
	if len(src) < 4 {
		err = fmt.Errorf("%w: time needs 4 bytes", base.ErrTruncatedInput)
		return
	}
	val = DlmsTime{Hour: src[0], Minute: src[1], Second: src[2], Hundredths: src[3]}
	err = val.validate()
	return
}

func NewDlmsDateTimeFromSlice(src []byte) (val DlmsDateTime, err error) {
	if len(src) < 12 {
		err = fmt.Errorf("%w: datetime needs 12 bytes", base.ErrTruncatedInput)
		return
	}
	val = DlmsDateTime{
		Date:      DlmsDate{Year: uint16(src[0])<<8 | uint16(src[1]), Month: src[2], Day: src[3], DayOfWeek: src[4]},
		Time:      DlmsTime{Hour: src[5], Minute: src[6], Second: src[7], Hundredths: src[8]},
		Deviation: int16(src[9])<<8 | int16(src[10]),
		Status:    src[11],
	}
	err = val.validate()
	return
}

func encodetime(out *bytes.Buffer, t *DlmsTime) {
	out.WriteByte(t.Hour)
	out.WriteByte(t.Minute)
	out.WriteByte(t.Second)
	out.WriteByte(t.Hundredths)
}

func encodedate(out *bytes.Buffer, t *DlmsDate) {
	out.WriteByte(byte(t.Year >> 8))
	out.WriteByte(byte(t.Year))
	out.WriteByte(t.Month)
	out.WriteByte(t.Day)
	out.WriteByte(t.DayOfWeek)
}

func encodedatetime(out *bytes.Buffer, t *DlmsDateTime) {
	encodedate(out, &t.Date)
	encodetime(out, &t.Time)
	out.WriteByte(byte(t.Deviation >> 8))
	out.WriteByte(byte(t.Deviation))
	out.WriteByte(t.Status)
}

func encodeDateTime(out *bytes.Buffer, d *DlmsData) error {
	switch t := d.Value.(type) {
	case time.Time:
		dt := NewDlmsDateTimeFromTime(t)
		encodedatetime(out, &dt)
	case DlmsDateTime:
		encodedatetime(out, &t)
	case *DlmsDateTime:
		encodedatetime(out, t)
	default:
		return fmt.Errorf("unsupported data type for date time: %T", d.Value)
	}
	return nil
}

func encodeDate(out *bytes.Buffer, d *DlmsData) error {
	switch t := d.Value.(type) {
	case DlmsDate:
		encodedate(out, &t)
	case *DlmsDate:
		encodedate(out, t)
	default:
		return fmt.Errorf("unsupported data type for date: %T", d.Value)
	}
	return nil
}

func encodeTimeValue(out *bytes.Buffer, d *DlmsData) error {
	switch t := d.Value.(type) {
	case DlmsTime:
		encodetime(out, &t)
	case *DlmsTime:
		encodetime(out, t)
	default:
		return fmt.Errorf("unsupported data type for time: %T", d.Value)
	}
	return nil
}
