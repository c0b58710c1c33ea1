// Package config loads the filesystem inputs that accompany a CRL during
// import: the optional REVOCATION properties file and the scalar engine
// options that control how an import run behaves.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// javaTimeLayout is the Java SimpleDateFormat "yyyyMMddHHmmss" pattern,
// always interpreted in UTC.
const javaTimeLayout = "20060102150405"

// Revocation is the decoded form of a REVOCATION properties file: the CA's
// own revocation descriptor, present only when the CA that issued this CRL
// has itself been revoked by its parent.
type Revocation struct {
	RevocationTime time.Time  `mapstructure:"ca.revocation.time"`
	InvalidityTime *time.Time `mapstructure:"ca.invalidity.time"`
}

// LoadRevocation reads and decodes a REVOCATION properties file at path. A
// missing file is returned as the unwrapped os.Open error, so a caller for
// which the file is optional can test it with os.IsNotExist.
func LoadRevocation(path string) (*Revocation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := parseProperties(f)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if _, ok := raw["ca.revocation.time"]; !ok {
		return nil, fmt.Errorf("config: %s is missing required key ca.revocation.time", path)
	}

	var rev Revocation
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: javaTimeDecodeHook,
		Result:     &rev,
	})
	if err != nil {
		return nil, fmt.Errorf("config: building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return &rev, nil
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	timePtrType = reflect.TypeOf(&time.Time{})
)

// javaTimeDecodeHook is a mapstructure.DecodeHookFuncType that parses a
// yyyyMMddHHmmss string into a time.Time or *time.Time, the shape
// mapstructure already uses for its own StringToTimeDurationHookFunc.
func javaTimeDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || (to != timeType && to != timePtrType) {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	t, err := time.ParseInLocation(javaTimeLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing %q as yyyyMMddHHmmss: %w", s, err)
	}
	if to == timePtrType {
		return &t, nil
	}
	return t, nil
}

// parseProperties reads Java-properties syntax: "key=value" lines, "#" and
// "!" full-line comments, blank lines ignored, no continuation lines or
// escape sequences — the subset real operator tooling actually emits for
// this file. No corpus library reads this format (see DESIGN.md), so this
// is a small hand-rolled scanner rather than a dependency.
func parseProperties(r io.Reader) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("line %d: missing '='", lineNo)
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", lineNo)
		}
		out[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
