package notify

import (
	"strings"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const defaultErrorCopy = "Something went wrong. Please try again."

var supportedLanguages = []language.Tag{
	language.AmericanEnglish,
	language.BrazilianPortuguese,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// Localizer is the minimal message-printer contract required by Render.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// NewPrinter returns a printer for the closest supported locale.
func NewPrinter(locale string) *message.Printer {
	tag, _ := language.MatchStrings(languageMatcher, strings.TrimSpace(locale))
	base, _ := tag.Base()
	for _, supported := range supportedLanguages {
		if supportedBase, _ := supported.Base(); supportedBase == base {
			return message.NewPrinter(supported)
		}
	}
	return message.NewPrinter(language.AmericanEnglish)
}

// Render returns localized copy for toast.
func Render(loc Localizer, toast Toast) string {
	if toast.Level == LevelError {
		return renderError(loc, toast)
	}
	key := "toast." + toast.Event
	text := localize(loc, key, successArgs(toast)...)
	if text == "" || text == key {
		return toast.Event
	}
	return text
}

func renderError(loc Localizer, toast Toast) string {
	code := toast.Code
	if code == "" {
		code = apperrors.CodeUnknown
	}
	key := "toast.error." + strings.ToLower(string(code))
	text := localize(loc, key, errorArgs(toast)...)
	if text == "" || text == key {
		return localizeWithFallback(loc, "toast.error.unknown", defaultErrorCopy)
	}
	return text
}

func successArgs(toast Toast) []any {
	switch toast.Event {
	case EventCartItemAdded, EventCartItemRemoved, EventWishlistAdded, EventWishlistRemoved:
		return []any{metadataValue(toast, "Product")}
	case EventOrderPlaced:
		return []any{metadataValue(toast, "Items")}
	default:
		return nil
	}
}

func errorArgs(toast Toast) []any {
	switch toast.Code {
	case apperrors.CodeCrossStoreConflict:
		return []any{metadataValue(toast, "Product")}
	case apperrors.CodeInsufficientStock:
		return []any{metadataValue(toast, "Available"), metadataValue(toast, "Product")}
	case apperrors.CodeValidationFailure:
		return []any{strings.TrimSpace(toast.Message)}
	default:
		return nil
	}
}

func metadataValue(toast Toast, name string) string {
	if value := strings.TrimSpace(toast.Metadata[name]); value != "" {
		return value
	}
	return "-"
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		loc = message.NewPrinter(language.AmericanEnglish)
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
