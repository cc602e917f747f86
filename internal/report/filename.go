package report

import (
	"fmt"
	"regexp"
	"strings"

	"autoinspect/pkg/domain"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// sanitizeToken reduces a free-text field to a filename-safe token.
func sanitizeToken(s string) string {
	token := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	token = strings.Trim(token, "_")
	if token == "" {
		return "NA"
	}
	return token
}

// Filename derives the deterministic artifact name for an inspection from
// the sanitized agent name, the primary vehicle's model and year, and the
// inspection date.
func Filename(insp domain.Inspection) string {
	vehicle := insp.PrimaryVehicle()
	return fmt.Sprintf("Inspection_%s_%s%s_%s.pdf",
		sanitizeToken(insp.AgentName),
		sanitizeToken(vehicle.Model),
		sanitizeToken(vehicle.Year),
		insp.InspectionDate.Format("2006-01-02"),
	)
}
