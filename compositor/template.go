package compositor

import "strings"

// templateSegment is one literal/placeholder pair of a parsed template. The
// trailing segment of a template that ends in literal text has an empty field.
type templateSegment struct {
	literal string
	field   string
}

// KeyTemplate is a reversible format string for one physical key segment:
// literal text interleaved with {field} placeholders, e.g.
// "datadefinition:v{version}:{flowFilterId}:{id}".
//
// A KeyTemplate is parsed once at schema-definition time and immutable
// afterwards.
type KeyTemplate struct {
	raw      string
	segments []templateSegment
	fields   []string
}

// NewKeyTemplate parses a template string. A brace that never closes, or an
// empty {} pair, is treated as literal text rather than a placeholder.
func NewKeyTemplate(raw string) KeyTemplate {
	t := KeyTemplate{raw: raw}
	rest := raw
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			t.segments = append(t.segments, templateSegment{literal: rest})
			break
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			t.segments = append(t.segments, templateSegment{literal: rest})
			break
		}
		close += open
		field := rest[open+1 : close]
		if field == "" {
			t.segments = append(t.segments, templateSegment{literal: rest[:close+1]})
			rest = rest[close+1:]
			continue
		}
		t.segments = append(t.segments, templateSegment{literal: rest[:open], field: field})
		t.fields = append(t.fields, field)
		rest = rest[close+1:]
	}
	return t
}

// ParseTemplateFields returns the placeholder field names of a template string
// in left-to-right order, preserving duplicates.
func ParseTemplateFields(template string) []string {
	return NewKeyTemplate(template).Fields()
}

// String returns the original template string.
func (t KeyTemplate) String() string { return t.raw }

// IsEmpty reports whether the template is the empty string.
func (t KeyTemplate) IsEmpty() bool { return t.raw == "" }

// Fields returns the placeholder field names in appearance order, preserving
// duplicates. The returned slice is a copy.
func (t KeyTemplate) Fields() []string {
	if len(t.fields) == 0 {
		return nil
	}
	out := make([]string, len(t.fields))
	copy(out, t.fields)
	return out
}

// NumFields returns the number of placeholders, counting duplicates.
func (t KeyTemplate) NumFields() int { return len(t.fields) }

// Format substitutes every placeholder with the string rendering of its field
// value. It returns a MissingFieldError when a placeholder's field is absent
// from values.
func (t KeyTemplate) Format(values FieldValues) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		b.WriteString(seg.literal)
		if seg.field == "" {
			continue
		}
		v, ok := values[seg.field]
		if !ok {
			return "", &MissingFieldError{Field: seg.field, Template: t.raw}
		}
		b.WriteString(formatValue(v))
	}
	return b.String(), nil
}

// ReverseParse decodes a formatted key string back into its field values.
// The template's literal segments are consumed in order; each placeholder
// captures up to the next literal segment, and the final placeholder captures
// the remainder of the string. A literal that does not match, or trailing
// text beyond the template, returns a ReverseParseMismatchError.
//
// When a field appears more than once in the template, the last occurrence
// wins.
func (t KeyTemplate) ReverseParse(actual string) (map[string]string, error) {
	out := make(map[string]string, len(t.fields))
	rest := actual
	for i, seg := range t.segments {
		if !strings.HasPrefix(rest, seg.literal) {
			return nil, &ReverseParseMismatchError{Actual: actual, Template: t.raw, Literal: seg.literal}
		}
		rest = rest[len(seg.literal):]
		if seg.field == "" {
			continue
		}
		if i == len(t.segments)-1 {
			out[seg.field] = rest
			rest = ""
			continue
		}
		next := t.segments[i+1].literal
		idx := strings.Index(rest, next)
		if idx < 0 {
			return nil, &ReverseParseMismatchError{Actual: actual, Template: t.raw, Literal: next}
		}
		out[seg.field] = rest[:idx]
		rest = rest[idx:]
	}
	if rest != "" {
		return nil, &ReverseParseMismatchError{Actual: actual, Template: t.raw, Literal: ""}
	}
	return out, nil
}

// BestPrefix renders literal and value pairs in template order, stopping at
// the first placeholder whose field is missing from values. The literal text
// preceding the missing placeholder is included in the prefix. This is the
// longest key prefix derivable from a partial field set, used for begins-with
// range conditions and latest-version checks.
func (t KeyTemplate) BestPrefix(values FieldValues) string {
	var b strings.Builder
	for _, seg := range t.segments {
		b.WriteString(seg.literal)
		if seg.field == "" {
			continue
		}
		v, ok := values[seg.field]
		if !ok {
			break
		}
		b.WriteString(formatValue(v))
	}
	return b.String()
}
