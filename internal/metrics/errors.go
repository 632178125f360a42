package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode"
)

// Kinds recognised anywhere in an error chain, most specific first. A
// failed step wraps its transport error, so the cause decides the kind.
var causeKinds = []struct {
	kind  string
	match func(error) bool
}{
	{"context.deadlineExceededError", func(err error) bool { return errors.Is(err, context.DeadlineExceeded) }},
	{"context.canceled", func(err error) bool { return errors.Is(err, context.Canceled) }},
	{"*net.DNSError", func(err error) bool { var e *net.DNSError; return errors.As(err, &e) }},
	{"*net.OpError", func(err error) bool { var e *net.OpError; return errors.As(err, &e) }},
	{"*url.Error", func(err error) bool { var e *url.Error; return errors.As(err, &e) }},
}

var friendlyNames = map[string]string{
	"url.Error":                     "Request URL error",
	"net.OpError":                   "Network error",
	"net.DNSError":                  "DNS lookup error",
	"scenario.StepError":            "Scenario step error",
	"context.deadlineExceededError": "Context deadline exceeded",
	"context.deadlineExceeded":      "Context deadline exceeded",
	"context.canceled":              "Context canceled",
}

const maxKindLen = 30

// ErrorKind returns the type name an error is counted under.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, ck := range causeKinds {
		if ck.match(err) {
			return ck.kind
		}
	}
	kind := fmt.Sprintf("%T", err)
	if len(kind) > maxKindLen {
		kind = kind[len(kind)-maxKindLen:]
	}
	return kind
}

// FriendlyErrorName returns a human-friendly label for an ErrorKind.
// Unknown kinds are spelled out word by word with their package in
// parentheses: "*fmt.wrapError" becomes "Wrap Error (fmt)".
func FriendlyErrorName(kind string) string {
	name := strings.TrimPrefix(strings.TrimSpace(kind), "*")
	if name == "" {
		return "Unknown error"
	}
	if friendly, ok := friendlyNames[name]; ok {
		return friendly
	}
	if i := strings.LastIndex(name, "/"); i != -1 {
		name = name[i+1:]
	}

	pkg, typ, found := strings.Cut(name, ".")
	if !found {
		pkg, typ = "", name
	}
	pretty := strings.Join(splitWords(typ), " ")
	if pkg == "" || pkg == "main" {
		return pretty
	}
	return fmt.Sprintf("%s (%s)", pretty, pkg)
}

// splitWords breaks a Go identifier into title-cased words; acronyms stay
// upper-case.
func splitWords(ident string) []string {
	rs := []rune(ident)
	var words []string
	start := 0
	for i := 1; i <= len(rs); i++ {
		if i < len(rs) && !wordStartsAt(rs, i) {
			continue
		}
		words = append(words, titleCase(string(rs[start:i])))
		start = i
	}
	return words
}

func wordStartsAt(rs []rune, i int) bool {
	prev, cur := rs[i-1], rs[i]
	switch {
	case unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
		return true // wrapError, ipv4Error
	case unicode.IsUpper(cur) && unicode.IsUpper(prev):
		return i+1 < len(rs) && unicode.IsLower(rs[i+1]) // HTTPError
	case unicode.IsDigit(cur):
		return !unicode.IsDigit(prev)
	}
	return false
}

func titleCase(word string) string {
	if strings.ToUpper(word) == word {
		return word
	}
	rs := []rune(strings.ToLower(word))
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}
