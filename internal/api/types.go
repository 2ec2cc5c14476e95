package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tool is one tool as reported by the gateway.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Group is a named bucket of tools (the gateway calls these "servers").
type Group struct {
	Name  string
	Tools []Tool
}

// EnabledCount returns how many tools in the group are enabled.
func (g Group) EnabledCount() int {
	n := 0
	for _, t := range g.Tools {
		if t.Enabled {
			n++
		}
	}
	return n
}

// Groups keeps the key order of the gateway's "servers" object.
// encoding/json decodes objects into maps, which would lose that order.
type Groups []Group

// Find returns the group with the given name.
func (gs Groups) Find(name string) (Group, bool) {
	for _, g := range gs {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// Clone returns a deep copy so callers can patch tools without touching the original.
func (gs Groups) Clone() Groups {
	if gs == nil {
		return nil
	}
	out := make(Groups, len(gs))
	for i, g := range gs {
		tools := make([]Tool, len(g.Tools))
		copy(tools, g.Tools)
		out[i] = Group{Name: g.Name, Tools: tools}
	}
	return out
}

func (gs *Groups) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*gs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("servers: expected object, got %v", tok)
	}

	out := Groups{}
	index := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("servers: expected key, got %v", keyTok)
		}
		var tools []Tool
		if err := dec.Decode(&tools); err != nil {
			return fmt.Errorf("servers[%q]: %w", name, err)
		}
		// Duplicate keys keep their first position, last value wins.
		if i, seen := index[name]; seen {
			out[i].Tools = tools
			continue
		}
		index[name] = len(out)
		out = append(out, Group{Name: name, Tools: tools})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*gs = out
	return nil
}

func (gs Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range gs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(g.Name)
		if err != nil {
			return nil, err
		}
		tools := g.Tools
		if tools == nil {
			tools = []Tool{}
		}
		val, err := json.Marshal(tools)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Preset is a named, server-stored selection of tools.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ToolCount   int    `json:"tool_count"`
}

// Envelope carries the status fields every gateway response may include.
type Envelope struct {
	Success *bool           `json:"success,omitempty"`
	Error   string          `json:"error,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// OK reports whether the response explicitly signalled success.
func (e Envelope) OK() bool { return e.Success != nil && *e.Success }

// Failed reports whether the response explicitly signalled failure.
func (e Envelope) Failed() bool { return e.Success != nil && !*e.Success }

// ToolsResponse is the body of GET /api/tools.
type ToolsResponse struct {
	Envelope
	Servers      Groups `json:"servers"`
	EnabledCount int    `json:"enabled_count"`
	Total        int    `json:"total"`
}

// PresetsResponse is the body of GET /api/presets.
type PresetsResponse struct {
	Envelope
	Presets []Preset `json:"presets"`
}

// ToggleResponse is the body of POST /api/tools/toggle (and enable/disable).
type ToggleResponse struct {
	Envelope
	Tool    string `json:"tool,omitempty"`
	Enabled bool   `json:"enabled"`
}

// CurrentResponse is the body of GET /api/current.
type CurrentResponse struct {
	Envelope
	Tools []string `json:"tools"`
	Count int      `json:"count,omitempty"`
}

// UpdateRequest is the body of POST /api/update.
type UpdateRequest struct {
	Tools []string `json:"tools"`
}

// ToolRequest is the body of POST /api/tools/{toggle,enable,disable}.
type ToolRequest struct {
	Tool string `json:"tool"`
}

// PresetLoadRequest is the body of POST /api/presets/load.
type PresetLoadRequest struct {
	Name string `json:"name"`
}
