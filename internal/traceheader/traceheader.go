// Package traceheader formats the x-dynatrace-test request header that tags
// load-test traffic with its test step, script, test and virtual user.
//
// The value is a semicolon-joined list of key=value pairs:
//
//	TSN=Slot_Spin;LSN=Vegas-Slots-Load-Test;LTN=Vegas_Slots_Load_Test_nightly;VU=42;SI=LoadRunner
//
// Field values are not escaped. Callers must not put ';' or '=' into them;
// [Fields.Validate] reports such values but [Build] does not enforce it.
package traceheader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Name is the header name.
	Name = "x-dynatrace-test"
	// Source is the fixed agent tag sent in the SI field.
	Source = "LoadRunner"
)

var fieldKeys = [...]string{"TSN", "LSN", "LTN", "VU", "SI"}

// Fields identify the request being tagged.
type Fields struct {
	Transaction string // TSN, test step name
	Script      string // LSN, load script name
	Test        string // LTN, load test name
	VU          int    // VU, virtual user id
}

// Build returns the header name and value for f.
func Build(f Fields) (string, string) {
	var sb strings.Builder
	sb.Grow(len(f.Transaction) + len(f.Script) + len(f.Test) + 32)
	sb.WriteString("TSN=")
	sb.WriteString(f.Transaction)
	sb.WriteString(";LSN=")
	sb.WriteString(f.Script)
	sb.WriteString(";LTN=")
	sb.WriteString(f.Test)
	sb.WriteString(";VU=")
	sb.WriteString(strconv.Itoa(f.VU))
	sb.WriteString(";SI=")
	sb.WriteString(Source)
	return Name, sb.String()
}

// Validate reports field values that would corrupt the header layout.
func (f Fields) Validate() error {
	var bad []string
	for _, field := range []struct{ key, val string }{
		{"TSN", f.Transaction},
		{"LSN", f.Script},
		{"LTN", f.Test},
	} {
		if strings.ContainsAny(field.val, ";=") {
			bad = append(bad, field.key)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return fmt.Errorf("traceheader: fields %s contain ';' or '='", strings.Join(bad, ", "))
}

// Parse reads a header value produced by Build.
func Parse(value string) (Fields, error) {
	parts := strings.Split(value, ";")
	if len(parts) != len(fieldKeys) {
		return Fields{}, fmt.Errorf("traceheader: expected %d fields, got %d", len(fieldKeys), len(parts))
	}

	var f Fields
	for i, part := range parts {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Fields{}, fmt.Errorf("traceheader: field %d is not key=value", i)
		}
		if key != fieldKeys[i] {
			return Fields{}, fmt.Errorf("traceheader: field %d is %q, want %q", i, key, fieldKeys[i])
		}
		switch key {
		case "TSN":
			f.Transaction = val
		case "LSN":
			f.Script = val
		case "LTN":
			f.Test = val
		case "VU":
			vu, err := strconv.Atoi(val)
			if err != nil {
				return Fields{}, fmt.Errorf("traceheader: VU: %w", err)
			}
			f.VU = vu
		case "SI":
			if val != Source {
				return Fields{}, errors.New("traceheader: unexpected SI " + strconv.Quote(val))
			}
		}
	}
	return f, nil
}
