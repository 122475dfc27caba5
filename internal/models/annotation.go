package models

import (
	"fmt"
	"sort"
	"strings"
)

// Radiologist identifies the source of an annotation.
type Radiologist string

const (
	RadiologistR1        Radiologist = "R1"
	RadiologistR2        Radiologist = "R2"
	RadiologistConsensus Radiologist = "consensus"
)

// Valid reports whether the radiologist identifier is one of the known set.
func (r Radiologist) Valid() bool {
	switch r {
	case RadiologistR1, RadiologistR2, RadiologistConsensus:
		return true
	}
	return false
}

// BBox is a tooth bounding box in pixel coordinates, origin top-left.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Validate checks the box shape on its own: non-negative origin, positive size.
func (b BBox) Validate() error {
	if b.X < 0 || b.Y < 0 {
		return fmt.Errorf("bbox origin must be non-negative, got (%g, %g)", b.X, b.Y)
	}
	if b.W <= 0 || b.H <= 0 {
		return fmt.Errorf("bbox size must be positive, got %gx%g", b.W, b.H)
	}
	return nil
}

// Within reports whether the box lies inside an image of the given size.
func (b BBox) Within(width, height int) bool {
	return b.X+b.W <= float64(width) && b.Y+b.H <= float64(height)
}

// ValidToothID reports whether id is a legal FDI tooth number:
// permanent teeth 11-18/21-28/31-38/41-48, primary teeth 51-55/61-65/71-75/81-85,
// supernumerary teeth 19/29/39/49.
func ValidToothID(id int) bool {
	quadrant := id / 10
	position := id % 10

	switch {
	case quadrant >= 1 && quadrant <= 4:
		return position >= 1 && position <= 9
	case quadrant >= 5 && quadrant <= 8:
		return position >= 1 && position <= 5
	}
	return false
}

// DefaultConditions is the condition vocabulary the corpus ships with.
// Overridable through configuration, see NewConditionSet.
var DefaultConditions = []string{
	"caries",
	"periapical_lesion",
	"restoration",
	"root_canal",
	"crown",
	"implant",
	"impacted_tooth",
	"residual_root",
	"bone_loss",
	"calculus",
	"prosthesis",
	"attrition",
}

// ConditionSet is the closed vocabulary of per-tooth condition flags.
type ConditionSet struct {
	names map[string]struct{}
	order []string
}

// NewConditionSet builds a vocabulary from the given names, or from
// DefaultConditions when names is empty.
func NewConditionSet(names []string) *ConditionSet {
	if len(names) == 0 {
		names = DefaultConditions
	}
	set := &ConditionSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := set.names[n]; ok {
			continue
		}
		set.names[n] = struct{}{}
		set.order = append(set.order, n)
	}
	return set
}

// Contains reports whether name is part of the vocabulary.
func (c *ConditionSet) Contains(name string) bool {
	_, ok := c.names[name]
	return ok
}

// Names returns the vocabulary in declaration order.
func (c *ConditionSet) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// AnnotationRecord is one detected tooth within one radiograph.
// Conditions is fully materialized: every vocabulary name is present,
// missing keys in the source JSON default to false.
type AnnotationRecord struct {
	ToothID     int             `json:"tooth_id"`
	BBox        BBox            `json:"bbox"`
	Conditions  map[string]bool `json:"conditions"`
	Radiologist Radiologist     `json:"radiologist_id"`
}

// PositiveConditions returns the names of conditions flagged true, sorted.
func (a *AnnotationRecord) PositiveConditions() []string {
	var out []string
	for name, v := range a.Conditions {
		if v {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
