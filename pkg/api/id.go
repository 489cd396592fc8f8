package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const conversionIDPrefix = "conv_"

var conversionIDPattern = regexp.MustCompile(`^conv_[0-9a-f]{32}$`)

// NewConversionID generates a conversion ID: "conv_" followed by a random
// UUID in hex without dashes.
func NewConversionID() string {
	return conversionIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidateConversionID reports whether id has the conversion ID format.
func ValidateConversionID(id string) bool {
	return conversionIDPattern.MatchString(id)
}
