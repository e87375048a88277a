// Package avatar implements the derived, non-persisted character state
// of spec §3 ("Avatar") and its deterministic replay/reconstruction
// (spec §4.9), including the hash-seeded pseudorandom mechanism (§4.5)
// that governs combat and crafting. Avatar subtypes are modeled as an
// interface per spec §9 "Avatar subtypes" — Novice is the only one
// today.
package avatar

// Class supplies the two class-dependent queries spec §9 calls out:
// damage dice and the max-hp formula. The class tag is persisted on
// State so future classes replay correctly (spec §9).
type Class interface {
	Tag() string
	Damage() string
	MaxHP(constitution int) int
}

// noviceClass is the sole Class implementation today (spec §4.3: "A
// subtype (initially Novice) supplies damage (dice expression) and
// max_hp").
type noviceClass struct{}

func (noviceClass) Tag() string       { return "novice" }
func (noviceClass) Damage() string    { return "1d6" }
func (noviceClass) MaxHP(con int) int { return con + 6 }

// Novice is the exported singleton novice class.
var Novice Class = noviceClass{}

func classForTag(tag string) Class {
	switch tag {
	case "novice":
		return Novice
	default:
		return Novice
	}
}

// State is the derived avatar (spec §3 "Avatar").
type State struct {
	User          string
	Name          string
	GravatarHash  string
	ClassTag      string
	Strength      int
	Dexterity     int
	Constitution  int
	Intelligence  int
	Wisdom        int
	Charisma      int
	HP            int
	XP            int
	LV            int
	Items         map[string]int
}

// class resolves this state's Class from its persisted tag.
func (s *State) class() Class { return classForTag(s.ClassTag) }

// MaxHP returns the class-dependent max hp formula (spec §3: "max_hp
// (computed: constitution + 6)" for Novice).
func (s *State) MaxHP() int { return s.class().MaxHP(s.Constitution) }

// Damage returns the class-dependent damage dice expression.
func (s *State) Damage() string { return s.class().Damage() }

// GetItem increments the count of item by one (spec: Avatar.get_item).
func (s *State) GetItem(item string) {
	if s.Items == nil {
		s.Items = make(map[string]int)
	}
	s.Items[item]++
}

// Modifier implements the D&D-style ability modifier table of spec §4.4.
func Modifier(score int) int {
	switch {
	case score >= 1 && score <= 3:
		return -3
	case score >= 4 && score <= 5:
		return -2
	case score >= 6 && score <= 8:
		return -1
	case score >= 9 && score <= 12:
		return 0
	case score >= 13 && score <= 15:
		return 1
	case score == 16 || score == 17:
		return 2
	case score == 18:
		return 3
	default:
		return 0
	}
}

// ProfileImageURL mirrors the original Avatar.profile_image_url helper.
func (s *State) ProfileImageURL() string {
	return "https://www.gravatar.com/avatar/" + s.GravatarHash + "?d=mm"
}
