package assistant

import (
	"encoding/json"
	"strings"
)

// fallbackInvocation is the single-JSON-object reply shape the text protocol
// asks the model to produce.
type fallbackInvocation struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// BuildFallbackSystem appends the text tool menu to a system instruction for
// models without native tool calling.
func BuildFallbackSystem(system, toolMenu string) string {
	return system + "\n\n" + toolMenu
}

// knownTool reports whether a name is in the tool catalog.
type knownTool func(name string) bool

// ParseFallbackReply scans model text for an embedded tool invocation. The
// strategies run in order and the first hit wins:
//  1. content inside a <tool_call>...</tool_call> wrapper,
//  2. content inside a fenced code block, optionally labeled tool_call or json,
//  3. a bare JSON object anywhere in the text whose name matches a known tool.
//
// A miss on every strategy, or a hit that fails to parse, means no tool call.
func ParseFallbackReply(text string, known knownTool) (*fallbackInvocation, bool) {
	if inv := extractTagged(text); inv != nil {
		return inv, true
	}
	if inv := extractFenced(text); inv != nil {
		return inv, true
	}
	if inv := extractBareJSON(text, known); inv != nil {
		return inv, true
	}
	return nil, false
}

func parseInvocation(candidate string) *fallbackInvocation {
	var inv fallbackInvocation
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &inv); err != nil {
		return nil
	}
	if inv.Name == "" {
		return nil
	}
	if inv.Args == nil {
		inv.Args = make(map[string]any)
	}
	return &inv
}

// extractTagged pulls the content between <tool_call> and </tool_call>.
func extractTagged(text string) *fallbackInvocation {
	const openTag, closeTag = "<tool_call>", "</tool_call>"
	start := strings.Index(text, openTag)
	if start < 0 {
		return nil
	}
	rest := text[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return nil
	}
	return parseInvocation(rest[:end])
}

// extractFenced pulls the content of the first fenced code block whose label
// is empty, "json", or "tool_call".
func extractFenced(text string) *fallbackInvocation {
	for {
		start := strings.Index(text, "```")
		if start < 0 {
			return nil
		}
		rest := text[start+3:]
		newline := strings.Index(rest, "\n")
		if newline < 0 {
			return nil
		}
		label := strings.TrimSpace(rest[:newline])
		body := rest[newline+1:]
		end := strings.Index(body, "```")
		if end < 0 {
			return nil
		}
		if label == "" || label == "json" || label == "tool_call" {
			if inv := parseInvocation(body[:end]); inv != nil {
				return inv
			}
		}
		text = body[end+3:]
	}
}

// extractBareJSON scans the text for JSON objects and returns the first one
// that parses as an invocation of a known tool. Decoding restarts at every
// open brace so prose around the object, and nesting, do not matter.
func extractBareJSON(text string, known knownTool) *fallbackInvocation {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		if inv := parseInvocation(string(raw)); inv != nil && known(inv.Name) {
			return inv
		}
	}
	return nil
}
