// Package personality classifies answers from the personality assessment.
package personality

import (
	"strings"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// Category is one answer option of the assessment.
type Category string

const (
	CategoryA Category = "A"
	CategoryB Category = "B"
	CategoryC Category = "C"
)

// Type is the classification result stored on the classifying attempt.
type Type string

const (
	TypeImpulsive Type = "impulsive"
	TypeBalanced  Type = "balanced"
	TypeStrategic Type = "strategic"
)

// priority lists categories in tie-break order: on equal counts the earlier
// category wins, so A beats B beats C.
var priority = []Category{CategoryA, CategoryB, CategoryC}

var typeOf = map[Category]Type{
	CategoryA: TypeImpulsive,
	CategoryB: TypeBalanced,
	CategoryC: TypeStrategic,
}

// IsValid reports whether t is a known personality type.
func (t Type) IsValid() bool {
	switch t {
	case TypeImpulsive, TypeBalanced, TypeStrategic:
		return true
	}
	return false
}

// ParseCategory normalizes a raw answer ("a", " B ") to a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := typeOf[c]; !ok {
		return "", shared.WrapError("personality", "ParseCategory", shared.ErrValidation,
			"unknown answer category", shared.ErrUnknownCategory)
	}
	return c, nil
}

// ParseAnswers normalizes a slice of raw answers.
func ParseAnswers(raw []string) ([]Category, error) {
	out := make([]Category, 0, len(raw))
	for _, r := range raw {
		c, err := ParseCategory(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Classifier maps answers to a personality type. It holds no state.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() Classifier {
	return Classifier{}
}

// Classify tallies answers and returns the type of the most frequent
// category. Ties go to the higher-priority category (A > B > C).
func (Classifier) Classify(answers []Category) (Type, error) {
	if len(answers) == 0 {
		return "", shared.ErrNoAnswers
	}

	counts := make(map[Category]int, len(priority))
	for _, a := range answers {
		if _, ok := typeOf[a]; !ok {
			return "", shared.ErrUnknownCategory
		}
		counts[a]++
	}

	winner := priority[0]
	for _, c := range priority[1:] {
		// strict > keeps the earlier category on ties
		if counts[c] > counts[winner] {
			winner = c
		}
	}
	return typeOf[winner], nil
}
