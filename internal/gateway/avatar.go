package gateway

import (
	"github.com/gabriel-vasile/mimetype"

	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
)

// MaxAvatarBytes caps avatar uploads.
const MaxAvatarBytes = 2 << 20

var avatarTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ValidateAvatar checks size and sniffed content type and returns the
// detected MIME type.
func ValidateAvatar(data []byte) (string, error) {
	if len(data) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "avatar file is required")
	}
	if len(data) > MaxAvatarBytes {
		return "", appErrors.Clone(appErrors.ErrPayloadTooLarge, "avatar must be 2MB or smaller")
	}

	detected := mimetype.Detect(data)
	for _, allowed := range avatarTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrUnsupportedMedia, "avatar must be a JPEG, PNG or WebP image")
}
