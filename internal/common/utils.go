package common

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
var Formats = []string{"json", "yaml"}

var (
	markdownLinkPattern = regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)
	urlPattern          = regexp.MustCompile(`^https?://[a-zA-Z0-9][-a-zA-Z0-9.]*[a-zA-Z0-9](:[0-9]+)?(/[^\s]*)?$`)
)

// NewLogger builds the JSON stderr logger every action uses.
func NewLogger(quiet, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch {
	case quiet:
		logLevel = slog.LevelError
	case verbose:
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// Output writes v to w as json or yaml. When fieldsStr is set only the
// named top-level fields are kept.
func Output(w io.Writer, format string, v interface{}, fieldsStr string) error {
	if fieldsStr != "" {
		v = FilterResultFields(v, fieldsStr)
	}
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	if s, ok := Suggest(format, Formats); ok {
		return fmt.Errorf("unknown format %q, did you mean %q?", format, s)
	}
	return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// FilterResultFields keeps the comma-separated top-level fields of result.
func FilterResultFields(result interface{}, fieldsStr string) map[string]interface{} {
	fullMap := structToMap(result)
	if fieldsStr == "" {
		return fullMap
	}

	includeFields := make(map[string]bool)
	for _, field := range strings.Split(fieldsStr, ",") {
		includeFields[strings.TrimSpace(field)] = true
	}

	filtered := make(map[string]interface{})
	for key, value := range fullMap {
		if includeFields[key] {
			filtered[key] = value
		}
	}
	return filtered
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(obj interface{}) map[string]interface{} {
	data, _ := json.Marshal(obj)
	var result map[string]interface{}
	_ = json.Unmarshal(data, &result)
	return result
}

// Suggest returns the option closest to input when it is similar enough.
func Suggest(input string, options []string) (string, bool) {
	best, bestScore := "", float32(0)
	for _, opt := range options {
		score, err := edlib.StringsSimilarity(strings.ToLower(input), strings.ToLower(opt), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = opt, score
		}
	}
	return best, bestScore >= 0.7
}

// ContentHash computes SHA256 hash of content and returns hex string.
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// IsURL reports whether arg names a web page rather than a local file.
func IsURL(arg string) bool {
	s := strings.ToLower(strings.TrimSpace(arg))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// SanitizeURL performs basic cleanup on URLs to handle common copy-paste issues.
// Removes whitespace, trailing punctuation and markdown artifacts.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	// [text](url) -> url
	if matches := markdownLinkPattern.FindStringSubmatch(cleaned); len(matches) > 1 {
		cleaned = matches[1]
	}

	for _, char := range []string{",", ".", ")", "}", "]", "\"", "'", ">", ";"} {
		cleaned = strings.TrimSuffix(cleaned, char)
	}
	for _, char := range []string{"(", "[", "<", "\"", "'"} {
		cleaned = strings.TrimPrefix(cleaned, char)
	}

	return strings.TrimSpace(cleaned)
}

// ValidateURL sanitizes rawURL and checks it is an absolute http(s) URL.
func ValidateURL(rawURL string) (string, error) {
	cleaned := SanitizeURL(rawURL)
	if cleaned == "" || strings.Contains(cleaned, " ") || !urlPattern.MatchString(cleaned) {
		return "", fmt.Errorf("invalid URL %q", rawURL)
	}
	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Host == "" || strings.ContainsAny(parsed.Host, "{}[]<>\"'") {
		return "", fmt.Errorf("invalid URL %q: bad host", rawURL)
	}
	return cleaned, nil
}
