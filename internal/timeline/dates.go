package timeline

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var (
	numericPattern   = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?\s*$`)
	timestampPattern = regexp.MustCompile(`^\d{10,}$`)
)

// DateFormatter rewrites date-like payload values with a PHP style output
// pattern such as "d/m/Y H:i:s".
type DateFormatter struct {
	pattern  string
	location *time.Location
}

// NewDateFormatter builds a formatter. Values are read in location.
func NewDateFormatter(pattern string, location *time.Location) DateFormatter {
	if location == nil {
		location = time.UTC
	}
	return DateFormatter{pattern: pattern, location: location}
}

// Pattern returns the output pattern.
func (f DateFormatter) Pattern() string {
	return f.pattern
}

// Format renders t with the output pattern.
func (f DateFormatter) Format(t time.Time) string {
	return FormatPHP(t.In(f.location), f.pattern)
}

// FormatProperties reformats every date-like leaf of both sections.
func (f DateFormatter) FormatProperties(p Properties) Properties {
	return Properties{
		Attributes: f.formatSection(p.Attributes),
		Old:        f.formatSection(p.Old),
	}
}

func (f DateFormatter) formatSection(values *Values) *Values {
	if values == nil {
		return nil
	}
	formatted := NewValues()
	for pair := values.Oldest(); pair != nil; pair = pair.Next() {
		formatted.Set(pair.Key, f.FormatValue(pair.Value))
	}
	return formatted
}

// FormatValue applies the date rules to one value, recursing into nested maps
// and lists. Booleans, numbers and numeric strings pass through unless a
// string looks like a raw timestamp of ten or more digits.
func (f DateFormatter) FormatValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil, bool, json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = f.FormatValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = f.FormatValue(item)
		}
		return out
	case *Values:
		return f.formatSection(v)
	case string:
		if numericPattern.MatchString(v) && !timestampPattern.MatchString(v) {
			return v
		}
		if parsed, ok := f.parseDate(v); ok {
			return f.Format(parsed)
		}
		return v
	default:
		return v
	}
}

// IsDate reports whether value is exactly a YYYY-MM-DD or YYYY-MM-DD HH:MM:SS
// string.
func IsDate(value string) bool {
	_, ok := NewDateFormatter("", time.UTC).parseDate(value)
	return ok
}

func (f DateFormatter) parseDate(value string) (time.Time, bool) {
	for _, layout := range []string{dateLayout, dateTimeLayout} {
		parsed, err := time.ParseInLocation(layout, value, f.location)
		if err != nil {
			continue
		}
		if parsed.Format(layout) == value {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatPHP formats t using PHP date() pattern characters. A backslash
// escapes the next character; unknown characters are copied verbatim.
func FormatPHP(t time.Time, pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 8)

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' {
			if i+1 < len(runes) {
				i++
				b.WriteRune(runes[i])
			}
			continue
		}

		switch r {
		case 'd':
			b.WriteString(t.Format("02"))
		case 'j':
			b.WriteString(strconv.Itoa(t.Day()))
		case 'D':
			b.WriteString(t.Format("Mon"))
		case 'l':
			b.WriteString(t.Format("Monday"))
		case 'N':
			weekday := int(t.Weekday())
			if weekday == 0 {
				weekday = 7
			}
			b.WriteString(strconv.Itoa(weekday))
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'z':
			b.WriteString(strconv.Itoa(t.YearDay() - 1))
		case 'm':
			b.WriteString(t.Format("01"))
		case 'n':
			b.WriteString(strconv.Itoa(int(t.Month())))
		case 'M':
			b.WriteString(t.Format("Jan"))
		case 'F':
			b.WriteString(t.Format("January"))
		case 't':
			b.WriteString(strconv.Itoa(daysIn(t)))
		case 'Y':
			b.WriteString(strconv.Itoa(t.Year()))
		case 'y':
			b.WriteString(t.Format("06"))
		case 'a':
			b.WriteString(t.Format("pm"))
		case 'A':
			b.WriteString(t.Format("PM"))
		case 'g':
			b.WriteString(t.Format("3"))
		case 'G':
			b.WriteString(strconv.Itoa(t.Hour()))
		case 'h':
			b.WriteString(t.Format("03"))
		case 'H':
			b.WriteString(t.Format("15"))
		case 'i':
			b.WriteString(t.Format("04"))
		case 's':
			b.WriteString(t.Format("05"))
		case 'v':
			b.WriteString(t.Format(".000")[1:])
		case 'e':
			b.WriteString(t.Location().String())
		case 'T':
			b.WriteString(t.Format("MST"))
		case 'P':
			b.WriteString(t.Format("-07:00"))
		case 'O':
			b.WriteString(t.Format("-0700"))
		case 'U':
			b.WriteString(strconv.FormatInt(t.Unix(), 10))
		case 'c':
			b.WriteString(t.Format(time.RFC3339))
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
