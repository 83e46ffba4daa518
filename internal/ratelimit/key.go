package ratelimit

// KeyForUID builds the limiter key scoping attempts to one user identifier.
func KeyForUID(uid string) string {
	if uid == "" {
		return ""
	}
	return "uid:" + uid
}
