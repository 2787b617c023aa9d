package parser

import (
	"regexp"
	"strings"
)

// NotRated is the sentinel for any detail field the source site left blank.
const NotRated = "-"

var (
	intRe = regexp.MustCompile(`\d+`)

	ratingLabels = map[string]string{
		"superstar": "Superstar",
		"goodie":    "Goodie",
		"average":   "Average",
		"badie":     "Badie",
	}
)

// SplitIrrCom splits the combined "irr., com." cell into its two ratings. The
// embedded integers are taken in order: first irritancy, then comedogenicity;
// missing slots become "-".
func SplitIrrCom(s string) (irritancy, comedogenicity string) {
	irritancy, comedogenicity = NotRated, NotRated
	nums := intRe.FindAllString(s, -1)
	if len(nums) > 0 {
		irritancy = nums[0]
	}
	if len(nums) > 1 {
		comedogenicity = nums[1]
	}
	return irritancy, comedogenicity
}

// NormalizeIDRating maps a raw rating cell onto one of the four categorical
// labels, title-cased. Anything unrecognized, including empty, becomes "-".
func NormalizeIDRating(s string) string {
	if label, ok := ratingLabels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return label
	}
	return NotRated
}

func isRatingLabel(s string) bool {
	_, ok := ratingLabels[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
