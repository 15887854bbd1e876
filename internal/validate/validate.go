// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate collects field errors so that every problem in a
// configuration is reported at once.
package validate

import (
	"cmp"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// FieldError is one rejected field.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Errors is the aggregate returned by Report.Err.
type Errors []FieldError

func (es Errors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Fields lists the rejected field names in report order.
func (es Errors) Fields() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Field
	}
	return out
}

// Report accumulates field errors. The zero value is ready to use.
type Report struct {
	errs Errors
}

// Fail records field as invalid.
func (r *Report) Fail(field string, value any, format string, args ...any) {
	r.errs = append(r.errs, FieldError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)})
}

// Check records field as invalid unless ok.
func (r *Report) Check(ok bool, field string, value any, format string, args ...any) {
	if !ok {
		r.Fail(field, value, format, args...)
	}
}

// Must records err, if any, against field.
func (r *Report) Must(field string, value any, err error) {
	if err != nil {
		r.Fail(field, value, "%v", err)
	}
}

func (r *Report) Len() int { return len(r.errs) }

// Err returns nil or a snapshot of the collected Errors.
func (r *Report) Err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return slices.Clone(r.errs)
}

// Between requires lo <= v <= hi.
func Between[T cmp.Ordered](r *Report, field string, v, lo, hi T) {
	r.Check(v >= lo && v <= hi, field, v, "must be between %v and %v, got %v", lo, hi, v)
}

// AtLeast requires v >= minimum.
func AtLeast[T cmp.Ordered](r *Report, field string, v, minimum T) {
	r.Check(v >= minimum, field, v, "must be at least %v, got %v", minimum, v)
}

// Above requires v > bound.
func Above[T cmp.Ordered](r *Report, field string, v, bound T) {
	r.Check(v > bound, field, v, "must be greater than %v, got %v", bound, v)
}

// OneOf requires v to be one of allowed.
func OneOf[T comparable](r *Report, field string, v T, allowed ...T) {
	r.Check(slices.Contains(allowed, v), field, v, "must be one of %v, got %v", allowed, v)
}

// NotBlank rejects empty and whitespace-only strings.
func NotBlank(r *Report, field, s string) {
	r.Check(strings.TrimSpace(s) != "", field, s, "must not be empty")
}

// URL requires an absolute URL with a host and, when schemes are given, one
// of those schemes.
func URL(r *Report, field, raw string, schemes ...string) {
	u, err := url.Parse(raw)
	switch {
	case raw == "":
		r.Fail(field, raw, "must not be empty")
	case err != nil:
		r.Fail(field, raw, "invalid URL: %v", err)
	case u.Host == "":
		r.Fail(field, raw, "URL must have a host")
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		r.Fail(field, raw, "scheme %q not allowed (want %s)", u.Scheme, strings.Join(schemes, " or "))
	}
}

// HostPort requires a listener address such as ":8080" or "127.0.0.1:9000".
func HostPort(r *Report, field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	r.Check(err == nil && port != "", field, addr, "must be host:port")
}
