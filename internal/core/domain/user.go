package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	minOnboardingAge = 13
	maxOnboardingAge = 120

	// Formative years are ages 12-18 inclusive.
	formativeAgeStart = 12
	formativeAgeEnd   = 18
)

var (
	ErrDateOfBirthFuture = errors.New("domain: date of birth is in the future")
	ErrTooYoung          = fmt.Errorf("domain: minimum age is %d", minOnboardingAge)
	ErrImplausibleAge    = fmt.Errorf("domain: maximum age is %d", maxOnboardingAge)
)

// User is an authenticated catalog-service account known to us.
type User struct {
	ID          int64
	SpotifyID   string
	DisplayName string
	Email       string
	Country     string
	DateOfBirth *time.Time
	CreatedAt   time.Time
}

// Session is a logged-in browser session. Generation timestamps feed the
// recommendation rate limiter.
type Session struct {
	ID           string
	UserID       int64
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	CreatedAt    time.Time
}

// ValidateDateOfBirth rejects birth dates that would make the user younger
// than 13 (boundary accepted) or older than 120, or that lie in the future.
func ValidateDateOfBirth(dob, now time.Time) error {
	if dob.After(now) {
		return ErrDateOfBirthFuture
	}
	age := ageAt(dob, now)
	if age < minOnboardingAge {
		return ErrTooYoung
	}
	if age > maxOnboardingAge {
		return ErrImplausibleAge
	}
	return nil
}

func ageAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	anniversary := dob.AddDate(age, 0, 0)
	if anniversary.After(now) {
		age--
	}
	return age
}

// FormativeWindow is the inclusive calendar-year range covering the user's
// ages 12 through 18, used to bound nostalgic chart lookups.
type FormativeWindow struct {
	StartYear int
	EndYear   int
}

// Years enumerates the window.
func (w FormativeWindow) Years() []int {
	years := make([]int, 0, w.EndYear-w.StartYear+1)
	for y := w.StartYear; y <= w.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// FormativeYears computes the window from a birth date.
func FormativeYears(dob time.Time) FormativeWindow {
	return FormativeWindow{
		StartYear: dob.Year() + formativeAgeStart,
		EndYear:   dob.Year() + formativeAgeEnd,
	}
}
