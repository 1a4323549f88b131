package match

import "fmt"

// Category is a canonical judgment outcome.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryJudgmentForPlaintiff
	CategoryJudgmentForDefendant
	CategoryDefaultJudgment
	CategoryAgreedJudgment
	CategoryDismissed
	CategoryJudgment
)

// Sides a judgment can be for.
const (
	SidePlaintiff  = "Plaintiff"
	SideDefendant  = "Defendant"
	SideNoJudgment = "No Judgement"
)

var categoryNames = map[Category]string{
	CategoryUnknown:              "unknown",
	CategoryJudgmentForPlaintiff: "judgment_for_plaintiff",
	CategoryJudgmentForDefendant: "judgment_for_defendant",
	CategoryDefaultJudgment:      "default_judgment",
	CategoryAgreedJudgment:       "agreed_judgment",
	CategoryDismissed:            "dismissed",
	CategoryJudgment:             "judgment",
}

// Categories lists every category, Unknown included.
func Categories() []Category {
	return []Category{
		CategoryUnknown,
		CategoryJudgmentForPlaintiff,
		CategoryJudgmentForDefendant,
		CategoryDefaultJudgment,
		CategoryAgreedJudgment,
		CategoryDismissed,
		CategoryJudgment,
	}
}

// ParseCategory maps a vocabulary name to its Category.
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("unknown judgment category %q", name)
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Type is the DISPOSITION.TYPE value for the category.
func (c Category) Type() string {
	switch c {
	case CategoryJudgmentForPlaintiff, CategoryJudgmentForDefendant, CategoryJudgment:
		return "Judgment"
	case CategoryDefaultJudgment:
		return "Default Judgment"
	case CategoryAgreedJudgment:
		return "Agreed Judgment"
	case CategoryDismissed:
		return "Dismissed"
	default:
		return "Unknown"
	}
}

// FixedSide is the side the category implies regardless of party names, or "".
func (c Category) FixedSide() string {
	switch c {
	case CategoryJudgmentForPlaintiff, CategoryDefaultJudgment:
		return SidePlaintiff
	case CategoryJudgmentForDefendant:
		return SideDefendant
	case CategoryDismissed:
		return SideNoJudgment
	default:
		return ""
	}
}
