package engine

import "github.com/jghoshh/taskvibe/backend/models"

// XPForUrgency is the experience awarded for completing a task in the bucket.
// Unknown buckets are worth as much as delayed ones.
func XPForUrgency(u models.Urgency) int {
	switch u {
	case models.UrgencyImmediate:
		return 15
	case models.UrgencyMedium:
		return 10
	default:
		return 5
	}
}
