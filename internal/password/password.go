package password

import "unicode"

// CheckStrength applies the registration password rules in order and reports
// the first one that fails. The reason is empty only when every rule passes.
func CheckStrength(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters long"
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper {
		return false, "Password must contain at least 1 uppercase letter"
	}
	if !hasLower {
		return false, "Password must contain at least 1 lowercase letter"
	}
	if !hasDigit {
		return false, "Password must contain at least 1 digit"
	}
	if !hasSpecial {
		return false, "Password must contain at least 1 special character"
	}

	return true, ""
}
