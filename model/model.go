package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
func GenerateUUIDWithSuffix(module string) string {
	return fmt.Sprintf("%s_%s", module, uuid.New().String())
}

// GenerateCaseID returns the public, human-readable case identifier FRD-<unix millis>-<suffix>.
func GenerateCaseID(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("FRD-%d-%s", at.UnixMilli(), suffix)
}

// CaseSuffix returns the random suffix of a case identifier, or the whole id if it is not in FRD form.
func CaseSuffix(caseID string) string {
	parts := strings.Split(caseID, "-")
	if len(parts) == 3 && parts[0] == "FRD" {
		return parts[2]
	}
	return caseID
}
