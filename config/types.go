package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/perfgo/vrtgo/isolate"
)

// CaptureMode selects the content isolation strategy.
type CaptureMode string

const (
	// ModeFull captures whole pages with configured regions hidden.
	ModeFull CaptureMode = "FULL"
	// ModeEmbed captures a single content block.
	ModeEmbed CaptureMode = "EMBED"
)

// ParseCaptureMode parses a capture mode, case-insensitively.
func ParseCaptureMode(s string) (CaptureMode, error) {
	switch m := CaptureMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeFull, ModeEmbed:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown capture mode %q (expected FULL or EMBED)", ErrInvalid, s)
}

func (m *CaptureMode) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseCaptureMode(node.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DiffMethod selects the similarity algorithm.
type DiffMethod string

const (
	// MethodHash compares perceptual hashes.
	MethodHash DiffMethod = "HASH"
	// MethodPixel compares pixels.
	MethodPixel DiffMethod = "PIXEL"
)

// ParseDiffMethod parses a diff method, case-insensitively.
func ParseDiffMethod(s string) (DiffMethod, error) {
	switch m := DiffMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodHash, MethodPixel:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown image diff method %q (expected HASH or PIXEL)", ErrInvalid, s)
}

func (m *DiffMethod) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDiffMethod(node.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// AuthMethod is how an environment authenticates. NONE and BASIC are
// handled directly; any other value names a provider whose login flow
// leaves a session artifact behind.
type AuthMethod string

const (
	AuthNone  AuthMethod = "NONE"
	AuthBasic AuthMethod = "BASIC"
)

// UsesSession reports whether the method relies on a stored session.
func (a AuthMethod) UsesSession() bool {
	switch a {
	case "", AuthNone, AuthBasic:
		return false
	}
	return true
}

func (a *AuthMethod) UnmarshalYAML(node *yaml.Node) error {
	*a = AuthMethod(strings.ToUpper(strings.TrimSpace(node.Value)))
	return nil
}

// Selectors is a list of CSS selectors. In YAML it is either a sequence or
// a comma separated string; "NULL" means none.
type Selectors []string

func (s *Selectors) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = isolate.SplitSelectors(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		var out Selectors
		for _, sel := range list {
			out = append(out, isolate.SplitSelectors(sel)...)
		}
		*s = out
		return nil
	}
	return fmt.Errorf("%w: selectors must be a string or a list", ErrInvalid)
}
