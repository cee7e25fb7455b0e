package core

import "time"

// AgeGroup is a derived bucket label; it is never stored.
type AgeGroup string

const (
	AgeGroup18To25 AgeGroup = "18-25"
	AgeGroup26To35 AgeGroup = "26-35"
	AgeGroupOther  AgeGroup = "Other"
)

// Age returns completed years between birth and now, using now's calendar date.
func Age(birth Date, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// BucketAge maps an age to its group. Under-18 and over-35 both land in Other.
func BucketAge(age int) AgeGroup {
	switch {
	case age >= 18 && age <= 25:
		return AgeGroup18To25
	case age >= 26 && age <= 35:
		return AgeGroup26To35
	default:
		return AgeGroupOther
	}
}

// AgeGroupOf buckets the age of someone born on birth, as of now.
func AgeGroupOf(birth Date, now time.Time) AgeGroup {
	return BucketAge(Age(birth, now))
}
