// Package schema validates raw curation submissions against the canonical
// submission shape and normalizes them into models.Submission.
//
// Validation never stops at the first problem: every offending field is
// reported with its path so a curation form can highlight all of them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"g2p/internal/lgd/models"
	dErrors "g2p/pkg/domain-errors"
)

// Option configures a validation run.
type Option func(*checker)

// WithPanels reports panel names for which known returns false as field
// errors alongside the structural ones.
func WithPanels(known func(name string) bool) Option {
	return func(c *checker) {
		c.knownPanel = known
	}
}

// Validate decodes and validates a JSON submission.
func Validate(raw []byte, opts ...Option) (*models.Submission, error) {
	doc, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return ValidateMap(doc, opts...)
}

// Decode parses a JSON object keeping numbers as json.Number, the form
// ValidateMap expects.
func Decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "submission is not valid JSON",
			[]dErrors.Field{{Path: "$", Reason: err.Error()}})
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "submission failed schema validation",
			[]dErrors.Field{{Path: "$", Reason: "must be an object"}})
	}
	return obj, nil
}

// ValidateMap validates an already decoded submission.
func ValidateMap(doc map[string]any, opts ...Option) (*models.Submission, error) {
	c := &checker{}
	for _, opt := range opts {
		opt(c)
	}
	normalized, _ := c.check(submissionSpec, "", doc).(map[string]any)
	if len(c.errs) > 0 {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "submission failed schema validation", c.errs)
	}
	dropEmptySynopses(normalized)

	// The normalized tree only holds canonical keys and types, so it decodes
	// straight into the typed submission.
	buf, err := json.Marshal(normalized)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode normalized submission")
	}
	var sub models.Submission
	if err := json.Unmarshal(buf, &sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode normalized submission")
	}
	sub.Present = make(map[string]bool, len(normalized))
	for k := range normalized {
		sub.Present[k] = true
	}
	return &sub, nil
}

type checker struct {
	errs       []dErrors.Field
	knownPanel func(string) bool
}

func (c *checker) fail(path, reason string) {
	if path == "" {
		path = "$"
	}
	c.errs = append(c.errs, dErrors.Field{Path: path, Reason: reason})
}

// check validates v against f and returns the normalized value, or nil when
// the value is absent or invalid.
func (c *checker) check(f Field, path string, v any) any {
	if v == nil {
		if f.Required {
			c.fail(path, "is required")
		}
		return nil
	}
	switch f.Kind {
	case KindString:
		return c.checkString(f, path, v)
	case KindInteger:
		return c.checkInteger(f, path, v)
	case KindBool:
		return c.checkBool(path, v)
	case KindObject:
		return c.checkObject(f, path, v)
	case KindArray:
		return c.checkArray(f, path, v)
	}
	c.fail(path, "has an unsupported shape")
	return nil
}

func (c *checker) checkString(f Field, path string, v any) any {
	if m, ok := v.(map[string]any); ok && f.ObjectKey != "" {
		v = m[f.ObjectKey]
		if v == nil {
			return nil
		}
	}
	s, ok := v.(string)
	if !ok {
		c.fail(path, "must be "+KindString.String())
		return nil
	}
	if strings.TrimSpace(s) == "" {
		if f.NonEmpty || f.Required {
			c.fail(path, "must not be empty")
		}
		return nil
	}
	if f.PanelName && c.knownPanel != nil && !c.knownPanel(s) {
		c.errs = append(c.errs, dErrors.Field{Path: path, Reason: "is not a known panel", Identifier: s})
		return nil
	}
	if len(f.OneOf) > 0 {
		for _, allowed := range f.OneOf {
			if strings.EqualFold(strings.TrimSpace(s), allowed) {
				return allowed
			}
		}
		c.fail(path, fmt.Sprintf("must be one of %s", strings.Join(f.OneOf, ", ")))
		return nil
	}
	return s
}

func (c *checker) checkInteger(f Field, path string, v any) any {
	n, ok := toInt64(v)
	if !ok {
		c.fail(path, "must be "+KindInteger.String())
		return nil
	}
	if f.Positive && n <= 0 {
		c.fail(path, "must be positive")
		return nil
	}
	return n
}

// toInt64 accepts numbers and numeric strings; pmids arrive in both encodings.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		return parseInt(x.String())
	case string:
		return parseInt(x)
	case float64:
		return floatToInt64(x)
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	// 123.0 is still an integer.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatToInt64(f)
	}
	return 0, false
}

// floatToInt64 converts whole numbers that fit in an int64. 2^63 itself is
// out of range, hence the strict upper bound.
func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func (c *checker) checkBool(path string, v any) any {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "y":
			return true
		case "false", "0", "no", "n", "":
			return false
		}
	case json.Number, float64, int, int64:
		if n, ok := toInt64(x); ok && (n == 0 || n == 1) {
			return n == 1
		}
	}
	c.fail(path, "must be "+KindBool.String())
	return nil
}

func (c *checker) checkObject(f Field, path string, v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		s, isString := v.(string)
		if !isString || f.FromString == "" {
			c.fail(path, "must be "+KindObject.String())
			return nil
		}
		obj = map[string]any{f.FromString: s}
	}
	out := make(map[string]any, len(f.Fields))
	for _, child := range f.Fields {
		raw, found := lookup(obj, child)
		if !found {
			if child.Required {
				c.fail(join(path, child.Name), "is required")
			}
			continue
		}
		if val := c.check(child, join(path, child.Name), raw); val != nil {
			out[child.Name] = val
		}
	}
	return out
}

func (c *checker) checkArray(f Field, path string, v any) any {
	items, ok := v.([]any)
	if !ok {
		if !f.AcceptSingle {
			c.fail(path, "must be "+KindArray.String())
			return nil
		}
		items = []any{v}
	}
	if f.NonEmpty && len(items) == 0 {
		c.fail(path, "must not be empty")
		return nil
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			c.fail(elemPath, "must not be null")
			continue
		}
		if val := c.check(*f.Elem, elemPath, item); val != nil {
			out = append(out, val)
		}
	}
	return out
}

func lookup(obj map[string]any, f Field) (any, bool) {
	if v, ok := obj[f.Name]; ok {
		return v, true
	}
	for _, alias := range f.Aliases {
		if v, ok := obj[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// dropEmptySynopses removes synopsis entries without a name; the legacy single
// object shape sends {"name": "", "support": ""} when no synopsis was chosen.
func dropEmptySynopses(doc map[string]any) {
	items, ok := doc["mechanism_synopsis"].([]any)
	if !ok {
		return
	}
	kept := items[:0]
	for _, item := range items {
		if m, ok := item.(map[string]any); ok && m["name"] != nil {
			kept = append(kept, item)
		}
	}
	doc["mechanism_synopsis"] = kept
}
