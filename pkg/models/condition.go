package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCondition is returned when a condition label cannot be resolved.
var ErrUnknownCondition = errors.New("unknown condition")

// Condition is an ordered severity scale. Lower values are more desirable.
type Condition int

const (
	New                   Condition = 10
	Renewed               Condition = 20
	Refurbished           Condition = 20
	Rental                Condition = 30
	OpenBox               Condition = 40
	UsedLikeNew           Condition = 40
	CollectibleLikeNew    Condition = 40
	UsedVeryGood          Condition = 50
	CollectibleVeryGood   Condition = 50
	UsedGood              Condition = 60
	CollectibleGood       Condition = 60
	UsedAcceptable        Condition = 70
	CollectibleAcceptable Condition = 70
	Unknown               Condition = 1000
)

// conditionNames maps the normalized label (lowercase, no separators) to a
// value. Several labels share a value.
var conditionNames = map[string]Condition{
	"new":                   New,
	"renewed":               Renewed,
	"refurbished":           Refurbished,
	"rental":                Rental,
	"openbox":               OpenBox,
	"usedlikenew":           UsedLikeNew,
	"collectiblelikenew":    CollectibleLikeNew,
	"usedverygood":          UsedVeryGood,
	"collectibleverygood":   CollectibleVeryGood,
	"usedgood":              UsedGood,
	"collectiblegood":       CollectibleGood,
	"usedacceptable":        UsedAcceptable,
	"collectibleacceptable": CollectibleAcceptable,
	"unknown":               Unknown,
}

// canonical display names, one per value
var conditionLabels = map[Condition]string{
	New:            "New",
	Renewed:        "Renewed",
	Rental:         "Rental",
	UsedLikeNew:    "UsedLikeNew",
	UsedVeryGood:   "UsedVeryGood",
	UsedGood:       "UsedGood",
	UsedAcceptable: "UsedAcceptable",
	Unknown:        "Unknown",
}

// ParseCondition resolves a label such as "Used - Like New" or
// "usedLikeNew". Unrecognized labels return ErrUnknownCondition.
func ParseCondition(label string) (Condition, error) {
	if c, ok := conditionNames[label]; ok {
		return c, nil
	}
	norm := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-', '_', '\u00a0':
			return -1
		}
		return r
	}, strings.ToLower(label))
	if c, ok := conditionNames[norm]; ok {
		return c, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownCondition, label)
}

// ConditionFromFormAction infers the condition from an add-to-cart form
// action, which embeds a marker like "_used_".
func ConditionFromFormAction(action string) Condition {
	switch {
	case strings.Contains(action, "_new_"):
		return New
	case strings.Contains(action, "_used_"):
		return UsedGood
	case strings.Contains(action, "_col_"):
		return CollectibleGood
	default:
		return Unknown
	}
}

// Admits reports whether an offer in condition other is acceptable when c is
// the configured cap.
func (c Condition) Admits(other Condition) bool {
	return other <= c
}

func (c Condition) String() string {
	if s, ok := conditionLabels[c]; ok {
		return s
	}
	return fmt.Sprintf("Condition(%d)", int(c))
}

// MarshalText renders the canonical label.
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts any label ParseCondition understands.
func (c *Condition) UnmarshalText(b []byte) error {
	v, err := ParseCondition(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
