// internal/loaner/validate.go
package loaner

import (
	"regexp"
	"strings"
)

var (
	handleRe = regexp.MustCompile(`^[a-z]{3,8}$`)
	tagRe    = regexp.MustCompile(`^((TRL|SAH)\d{5}|SAHM\d{4})$`)
)

// ValidateHandle lowercases a requester handle and checks it is 3-8 alpha
// characters. It returns the normalized handle. Pure; no remote calls.
func ValidateHandle(handle string) (string, error) {
	handle = strings.ToLower(handle)
	if !handleRe.MatchString(handle) {
		return "", newError(KindInvalidIdentifier, "uniqname must be 3-8 alphabetic characters").With("uniqname", handle)
	}
	return handle, nil
}

// ValidateTag checks a device tag against the loaner tag convention: TRL or
// SAH followed by 5 digits, or SAHM followed by 4. Pure; no remote calls.
func ValidateTag(tag string) error {
	if !tagRe.MatchString(tag) {
		return newError(KindInvalidAssetTag, "asset tag must be TRL or SAH plus 5 digits, or SAHM plus 4 digits").With("tag", tag)
	}
	return nil
}

// IsMacTag reports whether a tag names a Mac device. Mac loaners carry the
// SAHM prefix; TRL and plain SAH tags are Windows devices.
func IsMacTag(tag string) bool {
	return strings.HasPrefix(tag, macTagPrefix)
}
