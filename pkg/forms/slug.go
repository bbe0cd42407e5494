package forms

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// UUIDToSlug renders a UUID as its URL-safe base64 form, the compact shape
// used in widget values and URLs.
func UUIDToSlug(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// SlugToUUID parses a URL-safe base64 slug back to a UUID.
func SlugToUUID(slug string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(slug)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode uuid slug %q: %w", slug, err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode uuid slug %q: %w", slug, err)
	}
	return id, nil
}

// encodeUUIDSlug adapts UUIDToSlug to the ModelSelect encode hook. It
// accepts uuid.UUID values and their string form.
func encodeUUIDSlug(value any) (string, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return UUIDToSlug(v), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return "", fmt.Errorf("parse uuid %q: %w", v, err)
		}
		return UUIDToSlug(id), nil
	default:
		return "", fmt.Errorf("forms: cannot slug-encode %T", value)
	}
}

// decodeUUIDSlug adapts SlugToUUID to the ModelSelect decode hook.
func decodeUUIDSlug(slug string) (any, error) {
	id, err := SlugToUUID(slug)
	if err != nil {
		return nil, err
	}
	return id, nil
}
