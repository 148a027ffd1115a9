package billing

import (
	"strings"
)

// CourseType is the billing cadence chosen at enrollment
type CourseType string

const (
	CourseTypeMonthly CourseType = "monthly"
	CourseTypeYearly  CourseType = "yearly"
)

// String returns the string representation of CourseType
func (c CourseType) String() string {
	return string(c)
}

// IsValid returns true if the course type is known
func (c CourseType) IsValid() bool {
	switch c {
	case CourseTypeMonthly, CourseTypeYearly:
		return true
	}
	return false
}

// ParseCourseType parses a course type, case-insensitively
func ParseCourseType(s string) (CourseType, error) {
	ct := CourseType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.IsValid() {
		return "", ErrInvalidCourseType
	}
	return ct, nil
}
