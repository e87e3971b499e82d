package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/zsiec/omafgen/internal/errors"
)

// Pipeline steps, in execution order.
const (
	StepConvert = 1 + iota
	StepScale
	StepTile
	StepEncode
	StepPackage
)

// LastStep is the highest valid step number.
const LastStep = StepPackage

var stepNames = map[int]string{
	StepConvert: "projection conversion",
	StepScale:   "scale down",
	StepTile:    "tiling",
	StepEncode:  "encoding",
	StepPackage: "packaging",
}

// StepName returns a short name for step.
func StepName(step int) string {
	if name, ok := stepNames[step]; ok {
		return name
	}
	return fmt.Sprintf("step %d", step)
}

// Steps is an ascending, contiguous list of steps.
type Steps []int

// ParseSteps accepts "N" or "A-B" with 1 <= A <= B <= 5.
func ParseSteps(s string) (Steps, error) {
	s = strings.TrimSpace(s)
	invalid := apperrors.NewValidationError(fmt.Sprintf("provided steps are not valid: %q", s))

	first, last, isRange := strings.Cut(s, "-")
	if !isRange {
		last = first
	}

	a, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return nil, invalid
	}
	b, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil {
		return nil, invalid
	}
	if a < StepConvert || b > LastStep || a > b {
		return nil, invalid
	}

	steps := make(Steps, 0, b-a+1)
	for n := a; n <= b; n++ {
		steps = append(steps, n)
	}
	return steps, nil
}

// Has reports whether step is selected.
func (s Steps) Has(step int) bool {
	for _, n := range s {
		if n == step {
			return true
		}
	}
	return false
}

func (s Steps) String() string {
	switch len(s) {
	case 0:
		return ""
	case 1:
		return strconv.Itoa(s[0])
	default:
		return fmt.Sprintf("%d-%d", s[0], s[len(s)-1])
	}
}
