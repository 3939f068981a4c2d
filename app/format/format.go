// Package format turns typed result values into display strings.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/winhowes/RemoteData/app/runner"
	"github.com/winhowes/RemoteData/app/schema"
)

// Options select the locale and default currency for Field and Apply.
type Options struct {
	Locale   string
	Currency string
	// DateLayout is used for date values. Empty means time.DateTime.
	DateLayout string
}

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
	policy       = bluemonday.UGCPolicy()
)

func renderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdown
}

// Currency formats value as an amount of the ISO 4217 currency code in
// locale. Values that are not numeric, or codes and locales that cannot be
// parsed, are returned as plain text.
func Currency(value any, code, locale string) string {
	amount, ok := number(value)
	if !ok {
		return plain(value)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return strings.TrimSpace(strconv.FormatFloat(amount, 'f', 2, 64) + " " + code)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(amount)))
}

// Markdown renders GitHub flavored markdown to sanitized HTML.
func Markdown(value any) (string, error) {
	var buf bytes.Buffer
	if err := renderer().Convert([]byte(plain(value)), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
	time.RFC1123,
	time.RFC1123Z,
}

// Date parses value as a timestamp and renders it with layout. Numbers are
// read as Unix seconds. Unparseable values are returned unchanged.
func Date(value any, layout string) string {
	if layout == "" {
		layout = time.DateTime
	}
	if n, ok := number(value); ok {
		return time.Unix(int64(n), 0).UTC().Format(layout)
	}
	s := plain(value)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Format(layout)
		}
	}
	return s
}

// Field renders one value according to its output type.
func Field(kind schema.Kind, value any, opts Options) (string, error) {
	if value == nil {
		return "", nil
	}
	switch kind {
	case schema.KindCurrency:
		return Currency(value, opts.currency(), opts.Locale), nil
	case schema.KindMarkdown:
		return Markdown(value)
	case schema.KindHTML:
		return policy.Sanitize(plain(value)), nil
	case schema.KindNumber:
		if n, ok := number(value); ok {
			return message.NewPrinter(opts.tag()).Sprint(n), nil
		}
	}
	if kind == KindDate {
		return Date(value, opts.DateLayout), nil
	}
	return plain(value), nil
}

// Apply replaces the value of every currency, markdown and html field in
// res with its rendered form. Metadata is left untouched.
func Apply(res *runner.ExecutionResult, opts Options) error {
	if res == nil {
		return nil
	}
	for _, r := range res.Results {
		for key, f := range r.Result {
			switch schema.Kind(f.Type) {
			case schema.KindCurrency, schema.KindMarkdown, schema.KindHTML:
			default:
				continue
			}
			s, err := Field(schema.Kind(f.Type), f.Value, opts)
			if err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			if f.Value != nil {
				f.Value = s
			}
			r.Result[key] = f
		}
	}
	return nil
}

func (o Options) currency() string {
	if o.Currency == "" {
		return "USD"
	}
	return o.Currency
}

func (o Options) tag() language.Tag {
	t, err := language.Parse(o.Locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return t
}

// KindDate selects Date in Field. Output schemas have no date type, so
// callers pass it explicitly.
const KindDate schema.Kind = "date"

func number(v any) (float64, bool) {
	if f, ok := schema.ToFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func plain(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
