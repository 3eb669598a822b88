package security

// MaskPhone hides all but the last four digits of a phone number for logs and events.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "***"
	}
	return "***-" + phone[len(phone)-4:]
}
