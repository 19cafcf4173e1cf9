// Package values implements the engine's first-class domain value types:
// Date, Time, Duration, Decimal, Binary, and Record. All of them support
// value-equality, hashing, and a canonical string form, matching the
// discipline the expression evaluator and the operation applier rely on
// for filters, sorts, join keys, and distinctRows.
package values

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date represents either an instant or a date-only value. Equality is by
// milliseconds since the Unix epoch in UTC, per spec §4.2.
type Date struct {
	t        time.Time
	dateOnly bool
}

// NewDate builds a Date from a time.Time, normalized to UTC.
func NewDate(t time.Time) Date {
	return Date{t: t.UTC()}
}

// NewDateOnly builds a date-only value (no time-of-day component).
func NewDateOnly(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), dateOnly: true}
}

// Time reports the underlying UTC time.Time.
func (d Date) Time() time.Time { return d.t }

// IsDateOnly reports whether the value carries no time-of-day component.
func (d Date) IsDateOnly() bool { return d.dateOnly }

// EpochMillis returns milliseconds since the Unix epoch (UTC).
func (d Date) EpochMillis() int64 { return d.t.UnixMilli() }

// Equal implements the spec's millisecond-epoch equality rule.
func (d Date) Equal(o Date) bool { return d.EpochMillis() == o.EpochMillis() }

// Compare returns -1, 0, or 1 comparing d to o by epoch millis.
func (d Date) Compare(o Date) int {
	a, b := d.EpochMillis(), o.EpochMillis()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the canonical form: date-only values as YYYY-MM-DD,
// instants as RFC3339 in UTC.
func (d Date) String() string {
	if d.dateOnly {
		return d.t.Format("2006-01-02")
	}
	return d.t.Format(time.RFC3339Nano)
}

// AddDays returns a new Date offset by n days, preserving date-only-ness.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n), dateOnly: d.dateOnly}
}

// Time represents a time-of-day value, independent of any date.
type Time struct {
	// Nanos is nanoseconds since midnight, always in [0, 24h).
	Nanos int64
}

// NewTime builds a Time-of-day from hour/min/sec/nsec components.
func NewTime(h, m, s, ns int) Time {
	return Time{Nanos: int64(h)*int64(time.Hour) + int64(m)*int64(time.Minute) + int64(s)*int64(time.Second) + int64(ns)}
}

// Equal compares two times of day by their nanosecond offset.
func (t Time) Equal(o Time) bool { return t.Nanos == o.Nanos }

// Compare returns -1, 0, or 1.
func (t Time) Compare(o Time) int {
	switch {
	case t.Nanos < o.Nanos:
		return -1
	case t.Nanos > o.Nanos:
		return 1
	default:
		return 0
	}
}

// String renders HH:MM:SS[.fraction].
func (t Time) String() string {
	d := time.Duration(t.Nanos)
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	if d == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%09d", h, m, s, int64(d))
}

// Duration represents an elapsed span with nanosecond precision, value
// equality by its canonical nanosecond count.
type Duration struct {
	Nanos int64
}

// NewDuration builds a Duration from a stdlib time.Duration.
func NewDuration(d time.Duration) Duration { return Duration{Nanos: int64(d)} }

// Equal compares two durations.
func (d Duration) Equal(o Duration) bool { return d.Nanos == o.Nanos }

// Compare returns -1, 0, or 1.
func (d Duration) Compare(o Duration) int {
	switch {
	case d.Nanos < o.Nanos:
		return -1
	case d.Nanos > o.Nanos:
		return 1
	default:
		return 0
	}
}

// String renders the canonical "D.HH:MM:SS" form used by Power Query.
func (d Duration) String() string {
	neg := d.Nanos < 0
	n := d.Nanos
	if neg {
		n = -n
	}
	total := time.Duration(n)
	days := int(total / (24 * time.Hour))
	total -= time.Duration(days) * 24 * time.Hour
	h := int(total / time.Hour)
	total -= time.Duration(h) * time.Hour
	m := int(total / time.Minute)
	total -= time.Duration(m) * time.Minute
	s := int(total / time.Second)
	sign := ""
	if neg {
		sign = "-"
	}
	if days != 0 {
		return fmt.Sprintf("%s%d.%02d:%02d:%02d", sign, days, h, m, s)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
}

// Decimal is an arbitrary-precision decimal value that preserves the
// input's display scale when stringified, per spec §4.2. It wraps
// github.com/shopspring/decimal, which already tracks a value's exact
// exponent the way a literal was written (see DESIGN.md for where this
// library was pulled from in the example corpus).
type Decimal struct {
	d decimal.Decimal
}

// NewDecimalFromString parses a decimal literal, preserving its scale.
func NewDecimalFromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Decimal{}, fmt.Errorf("values: invalid decimal literal %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// NewDecimalFromInt builds an integer-valued Decimal (scale 0).
func NewDecimalFromInt(n int64) Decimal {
	return Decimal{d: decimal.NewFromInt(n)}
}

// NewDecimalFromFloat builds a Decimal from a float64 at the given scale.
func NewDecimalFromFloat(f float64, scale int) Decimal {
	return Decimal{d: decimal.NewFromFloatWithExponent(f, int32(-scale))}
}

// Equal compares two decimals by numeric value, ignoring display scale.
func (d Decimal) Equal(o Decimal) bool { return d.d.Equal(o.d) }

// Compare returns -1, 0, or 1 by numeric value.
func (d Decimal) Compare(o Decimal) int { return d.d.Cmp(o.d) }

// String renders the decimal at its preserved display scale.
func (d Decimal) String() string {
	if exp := d.d.Exponent(); exp < 0 {
		return d.d.StringFixed(-exp)
	}
	return d.d.String()
}

// Float64 returns the nearest float64 approximation.
func (d Decimal) Float64() float64 {
	f, _ := d.d.Float64()
	return f
}

// Binary is a byte-string value compared and hashed by its bytes.
type Binary struct {
	Data []byte
}

// NewBinary wraps a byte slice as a Binary value, copying it so later
// caller mutation cannot change a value once constructed.
func NewBinary(b []byte) Binary {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Binary{Data: cp}
}

// Equal compares two Binary values byte for byte.
func (b Binary) Equal(o Binary) bool {
	if len(b.Data) != len(o.Data) {
		return false
	}
	for i := range b.Data {
		if b.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// String renders the binary value as lowercase hex.
func (b Binary) String() string {
	var sb strings.Builder
	sb.Grow(len(b.Data) * 2)
	const hex = "0123456789abcdef"
	for _, c := range b.Data {
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0xf])
	}
	return sb.String()
}

// Record is an ordered key->value mapping whose equality and hash are
// insertion-order-independent and recursive, per spec §4.2.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord builds a Record from an ordered list of key/value pairs.
// Later duplicate keys overwrite earlier ones but keep the first
// occurrence's position, matching Power Query record-literal semantics.
func NewRecord(pairs ...RecordField) Record {
	r := Record{values: make(map[string]any, len(pairs))}
	for _, p := range pairs {
		r.Set(p.Key, p.Value)
	}
	return r
}

// RecordField is one key/value pair used to build a Record.
type RecordField struct {
	Key   string
	Value any
}

// Set assigns a field, preserving first-insertion order for the key.
func (r *Record) Set(key string, val any) {
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	if r.values == nil {
		r.values = map[string]any{}
	}
	r.values[key] = val
}

// Get returns the value for key and whether it was present.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Equal reports structural, order-independent, recursive equality.
func (r Record) Equal(o Record) bool {
	if len(r.keys) != len(o.keys) {
		return false
	}
	for _, k := range r.keys {
		av, ok := r.values[k]
		if !ok {
			return false
		}
		bv, ok := o.values[k]
		if !ok {
			return false
		}
		if !Equal(av, bv) {
			return false
		}
	}
	return true
}

// sortedKeys returns keys in lexicographic order, used for order-free
// hashing so two records built in a different field order hash equal.
func (r Record) sortedKeys() []string {
	out := append([]string(nil), r.keys...)
	sort.Strings(out)
	return out
}

// Hash produces an order-independent structural hash string for the
// record, suitable for distinctRows / join-key bucketing.
func (r Record) Hash() string {
	var sb strings.Builder
	for _, k := range r.sortedKeys() {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(HashOf(r.values[k]))
		sb.WriteByte(';')
	}
	return sb.String()
}

// Equal implements the engine-wide structural value-equality rule used by
// `=`/`<>`, filter comparisons, replace-match, distinctRows, and join
// keys: nulls are equal to nulls (including inside join-key tuples), and
// first-class value types compare by their own Equal method.
func Equal(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch av := a.(type) {
	case Date:
		bv, ok := b.(Date)
		return ok && av.Equal(bv)
	case Time:
		bv, ok := b.(Time)
		return ok && av.Equal(bv)
	case Duration:
		bv, ok := b.(Duration)
		return ok && av.Equal(bv)
	case Decimal:
		bv, ok := b.(Decimal)
		return ok && av.Equal(bv)
	case Binary:
		bv, ok := b.(Binary)
		return ok && av.Equal(bv)
	case Record:
		bv, ok := b.(Record)
		return ok && av.Equal(bv)
	case float64:
		switch bv := b.(type) {
		case float64:
			return av == bv
		case int:
			return av == float64(bv)
		}
		return false
	case int:
		switch bv := b.(type) {
		case int:
			return av == bv
		case float64:
			return float64(av) == bv
		}
		return false
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return a == b
	}
}

// HashOf returns a stable string hash for any supported cell value,
// used by Record.Hash, distinctRows, and join-key bucketing.
func HashOf(v any) string {
	if v == nil {
		return "\x00null"
	}
	switch t := v.(type) {
	case Date:
		return "date:" + strconv.FormatInt(t.EpochMillis(), 10)
	case Time:
		return "time:" + strconv.FormatInt(t.Nanos, 10)
	case Duration:
		return "dur:" + strconv.FormatInt(t.Nanos, 10)
	case Decimal:
		return "dec:" + t.d.String()
	case Binary:
		return "bin:" + t.String()
	case Record:
		return "rec:{" + t.Hash() + "}"
	case string:
		return "str:" + t
	case bool:
		if t {
			return "bool:1"
		}
		return "bool:0"
	case float64:
		return "num:" + strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return "num:" + strconv.FormatInt(int64(t), 10)
	default:
		return fmt.Sprintf("any:%v", t)
	}
}

// Less provides a total order across comparable cell values for sortRows,
// with nulls ordered by the caller's nulls-first/last policy (handled one
// level up in the ops package) rather than here.
func Less(a, b any) bool {
	switch av := a.(type) {
	case Date:
		if bv, ok := b.(Date); ok {
			return av.Compare(bv) < 0
		}
	case Time:
		if bv, ok := b.(Time); ok {
			return av.Compare(bv) < 0
		}
	case Duration:
		if bv, ok := b.(Duration); ok {
			return av.Compare(bv) < 0
		}
	case Decimal:
		if bv, ok := b.(Decimal); ok {
			return av.Compare(bv) < 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return !av && bv
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return av < bv
		case int:
			return av < float64(bv)
		}
	case int:
		switch bv := b.(type) {
		case int:
			return av < bv
		case float64:
			return float64(av) < bv
		}
	}
	return false
}
