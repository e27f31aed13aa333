package enums

// EnrollmentStatus tracks a user's enrollment in a course or membership.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusExpired   EnrollmentStatus = "expired"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// IsActive reports whether the enrollment grants access.
func (s EnrollmentStatus) IsActive() bool {
	return s == EnrollmentStatusEnrolled
}
