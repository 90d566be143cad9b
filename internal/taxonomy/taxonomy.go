// Package taxonomy collapses raw demographic labels into the controlled
// age and gender categories used for balancing and model conditioning.
package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// Category is a controlled age category.
type Category string

const (
	Child  Category = "child"
	Adult  Category = "adult"
	Senior Category = "senior"
)

// Categories lists the controlled set in conditioning-index order.
func Categories() []Category { return []Category{Child, Adult, Senior} }

// Index returns the age-embedding index used by the acoustic model, or -1.
func (c Category) Index() int {
	switch c {
	case Child:
		return 0
	case Adult:
		return 1
	case Senior:
		return 2
	default:
		return -1
	}
}

// Suffix returns the single-letter speaker-id tag for c.
func (c Category) Suffix() string {
	switch c {
	case Child:
		return "c"
	case Adult:
		return "a"
	case Senior:
		return "s"
	default:
		return ""
	}
}

// ParseCategory accepts only the controlled values.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Child, Adult, Senior:
		return c, true
	default:
		return "", false
	}
}

// Gender is a controlled gender value.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
	Other  Gender = "other"
)

// NormalizeGender maps a raw label onto the controlled set. Common Voice
// values such as "male_masculine" collapse onto their prefix. Empty input
// reports false.
func NormalizeGender(raw string) (Gender, bool) {
	g := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case g == "":
		return "", false
	case strings.HasPrefix(g, "female"):
		return Female, true
	case strings.HasPrefix(g, "male"):
		return Male, true
	default:
		return Other, true
	}
}

// Policy names an age-bucket exclusion variant.
type Policy string

const (
	// PolicyTeens drops only the "teens" bucket; "sixties" maps to senior.
	PolicyTeens Policy = "teens"
	// PolicyTeensSixties drops both "teens" and "sixties".
	PolicyTeensSixties Policy = "teens-sixties"
)

// ErrUnknownPolicy is returned for an unrecognised policy name.
var ErrUnknownPolicy = errors.New("unknown exclusion policy")

// ParsePolicy normalises a configured policy name.
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case PolicyTeens, PolicyTeensSixties:
		return p, nil
	case "teens+sixties", "teens_sixties":
		return PolicyTeensSixties, nil
	default:
		return "", fmt.Errorf("%w %q (expected %s|%s)", ErrUnknownPolicy, raw, PolicyTeens, PolicyTeensSixties)
	}
}

// Excluded reports whether the raw bucket label is filtered out by p.
func (p Policy) Excluded(label string) bool {
	switch normalizeLabel(label) {
	case "teens":
		return true
	case "sixties":
		return p == PolicyTeensSixties
	default:
		return false
	}
}

var labelTable = map[string]Category{
	"child":    Child,
	"children": Child,
	"kids":     Child,
	"7-11":     Child,
	"6-11":     Child,
	"8-11":     Child,

	"twenties": Adult,
	"thirties": Adult,
	"fourties": Adult,
	"forties":  Adult,
	"fifties":  Adult,
	"adult":    Adult,
	"adults":   Adult,

	"sixties":   Senior,
	"seventies": Senior,
	"eighties":  Senior,
	"nineties":  Senior,
	"senior":    Senior,
	"seniors":   Senior,
}

// Resolve maps a raw or already-controlled label to its category without
// applying any exclusion policy.
func Resolve(label string) (Category, bool) {
	c, ok := labelTable[normalizeLabel(label)]
	return c, ok
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
