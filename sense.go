// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpmkit

import (
	"fmt"
	"regexp"
)

type rpmSense uint32

// SenseAny specifies no specific version compare
// SenseLess specifies less then the specified version
// SenseGreater specifies greater then the specified version
// SenseEqual specifies equal to the specified version
const (
	SenseAny  rpmSense = 0
	SenseLess rpmSense = 1 << iota
	SenseGreater
	SenseEqual
)

// SensePrereq marks a requirement needed before installation.
// SenseRPMLib marks a requirement on a feature of rpm itself, named rpmlib(...).
const (
	SensePrereq rpmSense = 1 << 6
	SenseRPMLib rpmSense = 1 << 24

	senseCompareMask = SenseLess | SenseGreater | SenseEqual
)

type relationCategory string

const (
	RequiresCategory   relationCategory = "requires"
	ObsoletesCategory  relationCategory = "obsoletes"
	SuggestsCategory   relationCategory = "suggests"
	RecommendsCategory relationCategory = "recommends"
	ConflictsCategory  relationCategory = "conflicts"
	ProvidesCategory   relationCategory = "provides"
)

var relationMatch = regexp.MustCompile(`([^=<>\s]*)\s*((?:=|>|<|>=|<=)*)\s*(.*)?`)

// Relation is the structure of rpm sense relationships
type Relation struct {
	Name    string
	Version string
	Sense   rpmSense
}

// String return the string representation of the Relation
func (r *Relation) String() string {
	return fmt.Sprintf("%s%v%s", r.Name, r.Sense, r.Version)
}

// GoString return the string representation of the Relation
func (r *Relation) GoString() string {
	return r.String()
}

// Equal compare the equality of two relations
func (r *Relation) Equal(o *Relation) bool {
	return r.Name == o.Name && r.Version == o.Version && r.Sense == o.Sense
}

// Relations is a slice of Relation pointers
type Relations []*Relation

// String return the string representation of the Relations
func (r *Relations) String() string {
	var (
		val   string
		total = len(*r)
	)

	for idx, relation := range *r {
		val += relation.String()
		if idx < total-1 {
			val += ","
		}
	}

	return val
}

// GoString return the string representation of the Relations
func (r *Relations) GoString() string {
	return r.String()
}

// Set parse a string into a Relation and append it to the Relations slice if it is missing.
// With String and Type it makes Relations a pflag.Value.
func (r *Relations) Set(value string) error {
	relation, err := NewRelation(value)
	if err != nil {
		return err
	}
	r.Add(relation)

	return nil
}

// Type is used by pflag.
func (r *Relations) Type() string {
	return "relation"
}

// Contains reports whether a relation with the same name, version and
// comparison is present. Flags such as SenseRPMLib are ignored.
func (r *Relations) Contains(value *Relation) bool {
	for _, relation := range *r {
		if relation.String() == value.String() {
			return true
		}
	}
	return false
}

// Add appends a relation unless an equal one is already present. It is the
// sink payload codings declare their requirements into.
func (r *Relations) Add(value *Relation) {
	for _, relation := range *r {
		if relation.Equal(value) {
			return
		}
	}

	*r = append(*r, value)
}

// AddToHeader add the relations to the specified category on the header
func (r *Relations) AddToHeader(category relationCategory, h *Header) error {
	var (
		nameTag,
		versionTag,
		flagsTag int
		num      = len(*r)
		names    = make([]string, num)
		versions = make([]string, num)
		flags    = make([]int32, num)
	)

	if num == 0 {
		return nil
	}

	switch category {
	case ProvidesCategory:
		nameTag = TagProvides
		versionTag = TagProvideVersion
		flagsTag = TagProvideFlags
	case RequiresCategory:
		nameTag = TagRequires
		versionTag = TagRequireVersion
		flagsTag = TagRequireFlags
	case ObsoletesCategory:
		nameTag = TagObsoletes
		versionTag = TagObsoleteVersion
		flagsTag = TagObsoleteFlags
	case SuggestsCategory:
		nameTag = TagSuggests
		versionTag = TagSuggestVersion
		flagsTag = TagSuggestFlags
	case RecommendsCategory:
		nameTag = TagRecommends
		versionTag = TagRecommendVersion
		flagsTag = TagRecommendFlags
	case ConflictsCategory:
		nameTag = TagConflicts
		versionTag = TagConflictVersion
		flagsTag = TagConflictFlags
	default:
		return fmt.Errorf("unknown category %s", category)
	}

	for idx := range *r {
		relation := (*r)[idx]
		names[idx] = relation.Name
		versions[idx] = relation.Version
		flags[idx] = int32(relation.Sense)
	}

	h.PutStringArray(nameTag, names...)
	h.PutStringArray(versionTag, versions...)
	h.PutInt(flagsTag, flags...)

	return nil
}

// RelationsFromHeader reads the name, version and flags triple of category.
func RelationsFromHeader(category relationCategory, h *InputHeader) (Relations, error) {
	var nameTag, versionTag, flagsTag int
	switch category {
	case ProvidesCategory:
		nameTag, versionTag, flagsTag = TagProvides, TagProvideVersion, TagProvideFlags
	case RequiresCategory:
		nameTag, versionTag, flagsTag = TagRequires, TagRequireVersion, TagRequireFlags
	case ObsoletesCategory:
		nameTag, versionTag, flagsTag = TagObsoletes, TagObsoleteVersion, TagObsoleteFlags
	case SuggestsCategory:
		nameTag, versionTag, flagsTag = TagSuggests, TagSuggestVersion, TagSuggestFlags
	case RecommendsCategory:
		nameTag, versionTag, flagsTag = TagRecommends, TagRecommendVersion, TagRecommendFlags
	case ConflictsCategory:
		nameTag, versionTag, flagsTag = TagConflicts, TagConflictVersion, TagConflictFlags
	default:
		return nil, fmt.Errorf("unknown category %s", category)
	}
	if !h.Has(nameTag) {
		return nil, nil
	}
	names, err := h.Strings(nameTag)
	if err != nil {
		return nil, err
	}
	versions, err := h.Strings(versionTag)
	if err != nil {
		return nil, err
	}
	flags, err := h.Ints(flagsTag)
	if err != nil {
		return nil, err
	}
	if len(versions) != len(names) || len(flags) != len(names) {
		return nil, fmt.Errorf("%s: %d names, %d versions, %d flags", category, len(names), len(versions), len(flags))
	}
	r := make(Relations, len(names))
	for i := range names {
		r[i] = &Relation{Name: names[i], Version: versions[i], Sense: rpmSense(uint32(flags[i]))}
	}
	return r, nil
}

// NewRelation parse a string into a Relation
func NewRelation(related string) (*Relation, error) {
	var (
		err   error
		sense rpmSense
	)
	parts := relationMatch.FindStringSubmatch(related)
	if sense, err = parseSense(parts[2]); err != nil {
		return nil, err
	}

	return &Relation{
		Name:    parts[1],
		Version: parts[3],
		Sense:   sense,
	}, nil
}

var senseStrings = map[rpmSense]string{
	SenseAny:                  "",
	SenseLess:                 "<",
	SenseGreater:              ">",
	SenseEqual:                "=",
	SenseLess | SenseEqual:    "<=",
	SenseGreater | SenseEqual: ">=",
}

// String return the string representation of the rpmSense. Only the
// comparison bits are shown.
func (r rpmSense) String() string {
	var (
		ok  bool
		ret string
	)

	if ret, ok = senseStrings[r&senseCompareMask]; !ok {
		return "UNKNOWN"
	}

	return ret
}

// GoString return the string representation of the rpmSense
func (r rpmSense) GoString() string {
	return r.String()
}

func parseSense(sense string) (rpmSense, error) {
	var (
		ret     rpmSense
		toMatch string
	)
	for ret, toMatch = range senseStrings {
		if sense == toMatch {
			return ret, nil
		}
	}

	return ret, fmt.Errorf("unknown sense value")
}
