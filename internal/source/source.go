// Package source defines the indexable sources crawled into the settings
// index and the registry they are enumerated from.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	"github.com/Aman-CERP/settingsearch/internal/store"
)

// ErrUnresolved is returned by a source whose backing provider cannot be
// reached. The crawler skips it for the current pass.
var ErrUnresolved = errors.New("source provider cannot be resolved")

// Kind is the preference type of a screen item.
type Kind string

const (
	KindPreference Kind = ""
	KindCheckbox   Kind = "checkbox"
	KindList       Kind = "list"
)

// Item is one child of a screen.
type Item struct {
	Key        string   `yaml:"key" toml:"key"`
	Kind       Kind     `yaml:"kind" toml:"kind"`
	Title      string   `yaml:"title" toml:"title"`
	Summary    string   `yaml:"summary" toml:"summary"`
	SummaryOn  string   `yaml:"summary_on" toml:"summary_on"`
	SummaryOff string   `yaml:"summary_off" toml:"summary_off"`
	Keywords   string   `yaml:"keywords" toml:"keywords"`
	Entries    []string `yaml:"entries" toml:"entries"`
	Icon       string   `yaml:"icon" toml:"icon"`

	// Fragment is the class of the child screen this item opens.
	Fragment string `yaml:"fragment" toml:"fragment"`

	Switch *store.InlineSwitchPayload `yaml:"inline_switch" toml:"inline_switch"`
	List   *store.InlineListPayload   `yaml:"inline_list" toml:"inline_list"`
}

// Payload returns the inline payload declared for the item, or nil.
func (it Item) Payload() store.Payload {
	return payloadOf(it.Switch, it.List)
}

// Screen is a declarative preference screen: a header plus flat children.
type Screen struct {
	Key      string `yaml:"key" toml:"key"`
	Title    string `yaml:"title" toml:"title"`
	Summary  string `yaml:"summary" toml:"summary"`
	Keywords string `yaml:"keywords" toml:"keywords"`
	Rank     int    `yaml:"rank" toml:"rank"`

	// Locale restricts a provider supplied screen to one locale; empty
	// means any.
	Locale string `yaml:"locale" toml:"locale"`

	ClassName           string `yaml:"class_name" toml:"class_name"`
	IntentAction        string `yaml:"intent_action" toml:"intent_action"`
	IntentTargetPackage string `yaml:"intent_target_package" toml:"intent_target_package"`
	IntentTargetClass   string `yaml:"intent_target_class" toml:"intent_target_class"`

	Children []Item `yaml:"children" toml:"children"`
}

// RawItem is an already flat entry.
type RawItem struct {
	Locale     string   `yaml:"locale" toml:"locale"`
	Key        string   `yaml:"key" toml:"key"`
	Title      string   `yaml:"title" toml:"title"`
	SummaryOn  string   `yaml:"summary_on" toml:"summary_on"`
	SummaryOff string   `yaml:"summary_off" toml:"summary_off"`
	Entries    []string `yaml:"entries" toml:"entries"`
	Keywords   string   `yaml:"keywords" toml:"keywords"`
	Icon       string   `yaml:"icon" toml:"icon"`
	Rank       int      `yaml:"rank" toml:"rank"`
	UserID     int      `yaml:"user_id" toml:"user_id"`

	ScreenTitle         string `yaml:"screen_title" toml:"screen_title"`
	ClassName           string `yaml:"class_name" toml:"class_name"`
	IntentAction        string `yaml:"intent_action" toml:"intent_action"`
	IntentTargetPackage string `yaml:"intent_target_package" toml:"intent_target_package"`
	IntentTargetClass   string `yaml:"intent_target_class" toml:"intent_target_class"`

	Switch *store.InlineSwitchPayload `yaml:"inline_switch" toml:"inline_switch"`
	List   *store.InlineListPayload   `yaml:"inline_list" toml:"inline_list"`
}

// Payload returns the inline payload declared for the raw item, or nil.
func (r RawItem) Payload() store.Payload {
	return payloadOf(r.Switch, r.List)
}

func payloadOf(sw *store.InlineSwitchPayload, list *store.InlineListPayload) store.Payload {
	switch {
	case sw != nil:
		return *sw
	case list != nil:
		return *list
	default:
		return nil
	}
}

// Source is one provider of indexable content.
type Source interface {
	// ID identifies the source; the non-indexable overlay and the rows'
	// source column are keyed by it.
	ID() string
	// Identity is an identity+version string used for fingerprinting.
	Identity() string
	Screens(ctx context.Context, locale string) ([]Screen, error)
	RawItems(ctx context.Context, locale string) ([]RawItem, error)
	NonIndexableKeys(ctx context.Context) ([]string, error)
}

// Defaults are the open-action fields a provider lends to the screens and
// raw items it supplies when they leave them blank.
type Defaults struct {
	ClassName           string `yaml:"class_name" toml:"class_name"`
	IntentAction        string `yaml:"intent_action" toml:"intent_action"`
	IntentTargetPackage string `yaml:"intent_target_package" toml:"intent_target_package"`
}

// Provider is implemented by sources that hand out nested screens.
type Provider interface {
	Defaults() Defaults
}

// Fingerprint summarizes the identities of sources. Order of sources does
// not matter.
func Fingerprint(sources []Source) string {
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.Identity())
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(sum[:])
}
