package service

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"webhook-relay/config"
)

// Parse failure reason codes. These end up in the notification's error
// description, never in HTTP responses.
const (
	ParseReasonTooLarge       = "data_too_large"
	ParseReasonTooManyParams  = "too_many_parameters"
	ParseReasonBadEncoding    = "malformed_encoding"
	ParseReasonInvalidJSON    = "invalid_json"
	ParseReasonTooDeep        = "structure_too_deep"
	ParseReasonTooWide        = "structure_too_wide"
	ParseReasonBadContentType = "unsupported_content_type"
)

// ContentTypeForm and ContentTypeJSON are the accepted media type bases.
const (
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeJSON = "application/json"
)

// Embedded-JSON candidate keys on the form path. Only these top-level form
// fields get a nested JSON parse attempt.
var embeddedJSONKeys = map[string]struct{}{
	"payload": {},
	"data":    {},
	"json":    {},
}

// ParseError reports why a payload was rejected. It is a result value, not a
// Go error: parse failures are expected input, not program faults.
type ParseError struct {
	Reason string
	Detail string
}

func (e *ParseError) String() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// SafeParser turns untrusted webhook bodies into bounded key/value mappings.
// Every limit is enforced before the corresponding work happens, so a hostile
// payload cannot cost more than its own byte length.
type SafeParser struct {
	cfg     config.ParserConfig
	maxBody int
}

// NewSafeParser creates a parser with the configured limits. maxBody repeats
// the intake ceiling so the parser stays safe even for bodies that reached
// storage through another path.
func NewSafeParser(cfg config.ParserConfig, maxBody int) *SafeParser {
	return &SafeParser{cfg: cfg, maxBody: maxBody}
}

// Parse dispatches on the content type's media type base. Parameters such as
// charset are ignored.
func (p *SafeParser) Parse(contentType string, body []byte) (map[string]any, *ParseError) {
	base := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		base = mt
	}

	switch strings.ToLower(strings.TrimSpace(base)) {
	case ContentTypeForm:
		return p.ParseForm(body)
	case ContentTypeJSON:
		return p.ParseJSON(body)
	default:
		return nil, &ParseError{Reason: ParseReasonBadContentType, Detail: base}
	}
}

// ParseForm parses a urlencoded body into a flat string mapping. Keys over
// the key-length limit are dropped silently, as are oversized ordinary
// values. A small allow-list of keys may carry embedded JSON; an embedded
// document that is too large, malformed, or too deep degrades to a truncated
// raw string instead of failing the whole payload.
func (p *SafeParser) ParseForm(body []byte) (map[string]any, *ParseError) {
	if len(body) > p.maxBody {
		return nil, &ParseError{
			Reason: ParseReasonTooLarge,
			Detail: fmt.Sprintf("%d bytes", len(body)),
		}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &ParseError{Reason: ParseReasonBadEncoding, Detail: err.Error()}
	}

	if len(values) > p.cfg.MaxParams {
		return nil, &ParseError{
			Reason: ParseReasonTooManyParams,
			Detail: fmt.Sprintf("%d parameters", len(values)),
		}
	}

	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(key) > p.cfg.MaxKeyLen || len(vals) == 0 {
			continue
		}
		// First value wins for repeated keys.
		val := vals[0]

		if _, ok := embeddedJSONKeys[key]; ok {
			out[key] = p.parseEmbedded(val)
			continue
		}

		if len(val) > p.cfg.MaxValueLen {
			continue
		}
		out[key] = val
	}
	return out, nil
}

// parseEmbedded attempts a nested JSON parse for an allow-listed form field.
// Anything unacceptable falls back to the truncated raw string.
func (p *SafeParser) parseEmbedded(val string) any {
	truncated := val
	if len(truncated) > p.cfg.MaxValueLen {
		truncated = truncated[:p.cfg.MaxValueLen]
	}

	trimmed := strings.TrimSpace(val)
	if len(val) > p.cfg.MaxEmbeddedJSON || !strings.HasPrefix(trimmed, "{") {
		return truncated
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return truncated
	}
	if !p.structureOK(parsed, p.cfg.MaxFormJSONDepth) {
		return truncated
	}
	return parsed
}

// ParseJSON parses a JSON body into a mapping. An empty body is an empty
// mapping; a non-object top level is wrapped under a single key so the
// stored shape is always an object.
func (p *SafeParser) ParseJSON(body []byte) (map[string]any, *ParseError) {
	if len(body) > p.maxBody {
		return nil, &ParseError{
			Reason: ParseReasonTooLarge,
			Detail: fmt.Sprintf("%d bytes", len(body)),
		}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{}, nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ParseError{Reason: ParseReasonInvalidJSON, Detail: err.Error()}
	}

	if reason := p.structureError(parsed, p.cfg.MaxJSONDepth); reason != "" {
		return nil, &ParseError{Reason: reason}
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		obj = map[string]any{"value": parsed}
	}
	return obj, nil
}

// structureOK reports whether the decoded value stays within the given depth
// and the configured width limits.
func (p *SafeParser) structureOK(v any, maxDepth int) bool {
	return p.structureError(v, maxDepth) == ""
}

// structureError walks the decoded value and returns the first limit it
// breaks, or "" when the structure is acceptable. Depth counts container
// nesting levels; scalars at maxDepth are fine, containers are not.
func (p *SafeParser) structureError(v any, maxDepth int) string {
	switch val := v.(type) {
	case map[string]any:
		if maxDepth <= 0 {
			return ParseReasonTooDeep
		}
		if len(val) > p.cfg.MaxObjectKeys {
			return ParseReasonTooWide
		}
		for _, child := range val {
			if reason := p.structureError(child, maxDepth-1); reason != "" {
				return reason
			}
		}
	case []any:
		if maxDepth <= 0 {
			return ParseReasonTooDeep
		}
		if len(val) > p.cfg.MaxArrayItems {
			return ParseReasonTooWide
		}
		for _, child := range val {
			if reason := p.structureError(child, maxDepth-1); reason != "" {
				return reason
			}
		}
	}
	return ""
}
