package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// Selector says which channels a run should cover: everything, or an
// explicit list of channel ids. In JSON and YAML it is written either as the
// string "all" or as a list of ids.
type Selector struct {
	All bool
	IDs []int
}

// IsZero reports whether the selector was left unset.
func (s Selector) IsZero() bool {
	return !s.All && len(s.IDs) == 0
}

// Pick filters channels down to the selected ones, preserving order.
func (s Selector) Pick(channels []Channel) []Channel {
	if s.All {
		return channels
	}
	wanted := make(map[int]struct{}, len(s.IDs))
	for _, id := range s.IDs {
		wanted[id] = struct{}{}
	}
	out := make([]Channel, 0, len(s.IDs))
	for _, ch := range channels {
		if _, ok := wanted[ch.ID]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func (s *Selector) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		return s.fromString(str)
	}
	var ids []int
	if err := json.Unmarshal(b, &ids); err != nil {
		return fmt.Errorf(`channel selector must be "all" or a list of ids`)
	}
	s.All = false
	s.IDs = ids
	return nil
}

func (s *Selector) UnmarshalYAML(b []byte) error {
	var str string
	if err := yaml.Unmarshal(b, &str); err == nil {
		return s.fromString(str)
	}
	var ids []int
	if err := yaml.Unmarshal(b, &ids); err != nil {
		return fmt.Errorf(`channel selector must be "all" or a list of ids`)
	}
	s.All = false
	s.IDs = ids
	return nil
}

func (s *Selector) fromString(str string) error {
	if strings.EqualFold(strings.TrimSpace(str), "all") {
		s.All = true
		s.IDs = nil
		return nil
	}
	return fmt.Errorf("invalid channel selector %q", str)
}
