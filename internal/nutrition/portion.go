package nutrition

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinScaleFactor = 0.5
	MaxScaleFactor = 3.0

	// DefaultPortionText is shown when a meal states no default portion.
	DefaultPortionText = "1 portie"
)

var (
	gramsPattern  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:grams|gram|gr|g)\b`)
	mlPattern     = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*ml\b`)
	piecesPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(stuks|stuk)\b`)
)

// ScaleResult is the outcome of scaling a meal to a calorie target.
// Scaled is false when the meal has no usable kcal value; Factor is then 1
// and Macros are the zero-filled reference macros.
type ScaleResult struct {
	Factor      float64 `json:"factor"`
	PortionText string  `json:"portion_text"`
	Macros      Macros  `json:"macros"`
	Scaled      bool    `json:"scaled"`
}

// Scale scales meal's macros and portion text to targetKcal.
// The factor is clamped to [MinScaleFactor, MaxScaleFactor]. Each macro is
// rounded on its own, so the scaled kcal may drift from targetKcal.
func Scale(meal MealRecord, targetKcal int) ScaleResult {
	kcal := meal.kcalValue()
	if kcal <= 0 {
		return ScaleResult{
			Factor:      1,
			PortionText: portionOrDefault(meal.DefaultPortion),
			Macros:      meal.ReferenceMacros(),
		}
	}

	factor := clampFactor(float64(targetKcal) / kcal)
	return ScaleResult{
		Factor:      factor,
		PortionText: ScalePortionText(meal.DefaultPortion, factor),
		Macros:      meal.macrosTimes(factor),
		Scaled:      true,
	}
}

func clampFactor(f float64) float64 {
	if math.IsNaN(f) || f < MinScaleFactor {
		return MinScaleFactor
	}
	if f > MaxScaleFactor {
		return MaxScaleFactor
	}
	return f
}

// ScalePortionText rewrites the first grams, millilitres or pieces quantity in
// portion by factor. Unrecognised text gets a "1.5x " prefix; an empty portion
// becomes a gram amount of factor*100.
func ScalePortionText(portion string, factor float64) string {
	portion = strings.TrimSpace(portion)
	if portion == "" {
		return fmt.Sprintf("%dg", int(math.Round(factor*100)))
	}

	if loc := gramsPattern.FindStringSubmatchIndex(portion); loc != nil {
		return replaceNumber(portion, loc, factor)
	}
	if loc := mlPattern.FindStringSubmatchIndex(portion); loc != nil {
		return replaceNumber(portion, loc, factor)
	}
	if loc := piecesPattern.FindStringSubmatchIndex(portion); loc != nil {
		n, ok := parseQuantity(portion[loc[2]:loc[3]])
		if ok {
			count := math.Round(n*factor*10) / 10
			unit := "stuks"
			if count <= 1 {
				unit = "stuk"
			}
			return portion[:loc[2]] +
				strconv.FormatFloat(count, 'f', -1, 64) +
				portion[loc[3]:loc[4]] +
				unit +
				portion[loc[5]:]
		}
	}

	return fmt.Sprintf("%.1fx %s", factor, portion)
}

// replaceNumber swaps the first capture group of a match for round(n*factor).
func replaceNumber(portion string, loc []int, factor float64) string {
	n, ok := parseQuantity(portion[loc[2]:loc[3]])
	if !ok {
		return fmt.Sprintf("%.1fx %s", factor, portion)
	}
	scaled := int(math.Round(n * factor))
	return portion[:loc[2]] + strconv.Itoa(scaled) + portion[loc[3]:]
}

func parseQuantity(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func portionOrDefault(portion string) string {
	if strings.TrimSpace(portion) == "" {
		return DefaultPortionText
	}
	return portion
}
