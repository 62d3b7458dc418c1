package logger

import (
	"io"
	"regexp"
)

const redactedMark = "[REDACTED]"

// redactionRule rewrites every match of re with replace. replace may refer
// to capture groups of re.
type redactionRule struct {
	name    string
	re      *regexp.Regexp
	replace string
}

// Credential shapes that reach folio logs: provider keys from the agent
// config, the gateway shared secret, and bearer headers.
var defaultRules = []redactionRule{
	{
		name:    "anthropic-key",
		re:      regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
		replace: redactedMark,
	},
	{
		name:    "openai-key",
		re:      regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
		replace: redactedMark,
	},
	{
		name:    "aws-access-key",
		re:      regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		replace: redactedMark,
	},
	{
		name:    "bearer",
		re:      regexp.MustCompile(`(Bearer\s+)[A-Za-z0-9._~+/=-]+`),
		replace: "${1}" + redactedMark,
	},
	{
		name:    "secret-field",
		re:      regexp.MustCompile(`(?i)("?(?:api_key|apikey|shared_secret|secret|password|pwd)"?\s*[:=]\s*"?)[^\s",}]+`),
		replace: "${1}" + redactedMark,
	},
	{
		name:    "token-field",
		re:      regexp.MustCompile(`(?i)("?token"?\s*[:=]\s*"?)[A-Za-z0-9._-]{20,}`),
		replace: "${1}" + redactedMark,
	},
}

// Redactor masks credentials in log output. Field rules keep the field name
// so a redacted line still shows which setting was logged.
type Redactor struct {
	rules []redactionRule
}

func NewRedactor() *Redactor {
	rules := make([]redactionRule, len(defaultRules))
	copy(rules, defaultRules)
	return &Redactor{rules: rules}
}

// AddPattern masks every match of pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactionRule{name: "custom", re: re, replace: redactedMark})
	return nil
}

func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.replace)
	}
	return s
}

// Wrap returns a writer that redacts each write before passing it to w
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return redactingWriter{out: w, r: r}
}

type redactingWriter struct {
	out io.Writer
	r   *Redactor
}

// Write reports len(p) on success; the redacted line is usually shorter
func (w redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.out, w.r.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
