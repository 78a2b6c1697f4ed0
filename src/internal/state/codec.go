package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/maksimkurb/netstate/src/internal/errors"
)

// Parse decodes a JSON state document. Unknown kinds are rejected with
// InvalidArgument, recognized but unsupported ones with NotSupported.
func Parse(data []byte) (*NetworkState, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, errors.NewInvalidArgument("malformed state document", err)
	}
	if top == nil {
		return nil, errors.NewInvalidArgument("state document must be an object", nil)
	}

	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := &NetworkState{}
	for _, key := range keys {
		kind, err := ParseKind(key)
		if err != nil {
			return nil, err
		}

		var target interface{}
		switch kind {
		case KindInterfaces:
			s.Interfaces = []*Interface{}
			target = &s.Interfaces
		case KindRoutes:
			s.Routes = []*Route{}
			target = &s.Routes
		case KindRouteRules:
			s.RouteRules = []*RouteRule{}
			target = &s.RouteRules
		case KindDNS:
			s.DNS = &DNSResolver{}
			target = s.DNS
		}

		if err := decodeStrict(top[key], target); err != nil {
			return nil, errors.NewInvalidArgument(fmt.Sprintf("malformed %s", key), err)
		}
	}

	for _, i := range s.Interfaces {
		if i == nil {
			return nil, errors.NewInvalidArgument("null record in interfaces", nil)
		}
	}
	for _, r := range s.Routes {
		if r == nil {
			return nil, errors.NewInvalidArgument("null record in routes", nil)
		}
	}
	for _, r := range s.RouteRules {
		if r == nil {
			return nil, errors.NewInvalidArgument("null record in route-rules", nil)
		}
	}

	return s, nil
}

func decodeStrict(raw json.RawMessage, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

// ParseYAML decodes a YAML state document.
func ParseYAML(data []byte) (*NetworkState, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewInvalidArgument("malformed YAML state document", err)
	}
	if doc == nil {
		return nil, errors.NewInvalidArgument("empty state document", nil)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.NewInvalidArgument("state document is not representable as JSON", err)
	}
	return Parse(raw)
}

// ParseAny accepts JSON or YAML.
func ParseAny(data []byte) (*NetworkState, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return Parse(trimmed)
	}
	return ParseYAML(data)
}

// wireState mirrors NetworkState with pointer collections so that kinds
// present with no records are still encoded.
type wireState struct {
	Interfaces *[]*Interface `json:"interfaces,omitempty"`
	Routes     *[]*Route     `json:"routes,omitempty"`
	RouteRules *[]*RouteRule `json:"route-rules,omitempty"`
	DNS        *DNSResolver  `json:"dns-resolver,omitempty"`
}

// MarshalJSON encodes every present kind, including empty ones.
func (s *NetworkState) MarshalJSON() ([]byte, error) {
	w := wireState{DNS: s.DNS}
	if s.Interfaces != nil {
		w.Interfaces = &s.Interfaces
	}
	if s.Routes != nil {
		w.Routes = &s.Routes
	}
	if s.RouteRules != nil {
		w.RouteRules = &s.RouteRules
	}
	return json.Marshal(w)
}

// Marshal encodes the document as compact JSON with every collection sorted.
// The output for equal documents is byte-identical.
func (s *NetworkState) Marshal() ([]byte, error) {
	c := s.Clone()
	c.Sort()
	return json.Marshal(c)
}

// MarshalIndent is Marshal with indentation, for humans.
func (s *NetworkState) MarshalIndent() ([]byte, error) {
	c := s.Clone()
	c.Sort()
	return json.MarshalIndent(c, "", "  ")
}

// MarshalYAML encodes the document as block-style YAML keeping the JSON key
// order, so that name and type come first in every record.
func (s *NetworkState) MarshalYAML() ([]byte, error) {
	data, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	return JSONToYAML(data)
}

// JSONToYAML re-encodes a JSON value as block-style YAML, preserving key order.
func JSONToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	clearStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
