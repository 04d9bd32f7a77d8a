// Package utils provides text helpers shared by the tool caller and the tools:
// extracting JSON from model replies and rendering results.
package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSON returns JSON by trimming prefixes and postfixes,
// as a model can reply like `Here you go: {json}`
func CleanJSON(bs []byte) []byte {
	return trimPostfixAfterJSON(trimPrefixBeforeJSON(bs))
}

func trimPrefixBeforeJSON(bs []byte) []byte {
	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')

	var start int
	switch {
	case startObject == -1 && startArray == -1:
		return bs
	case startObject == -1:
		start = startArray
	case startArray == -1:
		start = startObject
	default:
		start = min(startObject, startArray)
	}
	return bs[start:]
}

func trimPostfixAfterJSON(bs []byte) []byte {
	endObject := bytes.LastIndexByte(bs, '}')
	endArray := bytes.LastIndexByte(bs, ']')

	var end int
	switch {
	case endObject == -1 && endArray == -1:
		return bs
	case endObject == -1:
		end = endArray
	case endArray == -1:
		end = endObject
	default:
		end = max(endObject, endArray)
	}
	return bs[:end+1]
}

// TrimBackticks removes ```json or ``` fences
func TrimBackticks(text string) string {
	return string(BytesTrimBackticks([]byte(text)))
}

var backtick = []byte("```")

// BytesTrimBackticks removes ```json or ``` fences
func BytesTrimBackticks(bs []byte) []byte {
	startIndex := bytes.Index(bs, backtick)
	if startIndex == -1 {
		return bs
	}
	startIndex += len(backtick)

	// skip the language tag up to the end of line
	for i := startIndex; i < len(bs) && bs[i] != '{' && bs[i] != '['; i++ {
		if bs[i] == '\n' {
			startIndex = i + 1
			break
		}
	}

	content := bs[startIndex:]
	endIndex := bytes.LastIndex(content, backtick)
	if endIndex == -1 {
		return content
	}
	return bytes.TrimSpace(content[:endIndex])
}

func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

// Stringify renders a tool result for display:
// strings as is, Stringer values with String(), anything else as indented JSON.
func Stringify(s any) string {
	switch v := s.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	}
	js, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", s)
	}
	return string(js)
}

// Truncate shortens s to at most n bytes on a rune boundary, appending "...".
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return strings.TrimRight(s[:cut], " \n\t") + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
