package certificate

import "cloud.google.com/go/civil"

// ExpiryStatus is derived from lifetime, expiry date and today's date.
type ExpiryStatus string

const (
	ExpiryLifetime     ExpiryStatus = "Lifetime"
	ExpiryActive       ExpiryStatus = "Active"
	ExpiringSoon       ExpiryStatus = "Expiring Soon"
	ExpiryExpired      ExpiryStatus = "Expired"
	ExpiryInvalid      ExpiryStatus = "Invalid"
	expiringSoonWindow              = 30
)

// ComputeExpiryStatus compares calendar days only, so the answer does not
// depend on the time of day. A certificate expiring today is Expiring Soon;
// one that expired yesterday is Expired. A non-lifetime certificate without
// an expiry date is open-ended and reported Active.
func ComputeExpiryStatus(lifetime bool, expiry *civil.Date, today civil.Date) ExpiryStatus {
	if lifetime {
		return ExpiryLifetime
	}
	if expiry == nil {
		return ExpiryActive
	}
	if expiry.Before(today) {
		return ExpiryExpired
	}
	if expiry.DaysSince(today) <= expiringSoonWindow {
		return ExpiringSoon
	}
	return ExpiryActive
}
