package services

import "errors"

// ErrNoAnalysis indicates the user has no completed taste analysis yet.
var ErrNoAnalysis = errors.New("services: library has not been analyzed")

// ErrDateOfBirthRequired indicates the nostalgia pipeline was invoked for a
// user who has not completed onboarding.
var ErrDateOfBirthRequired = errors.New("services: date of birth required")
