package stats

import "encoding/json"

// WriteJSON renders a Report as the JSON variant of spec.md §6's
// "{outputDir}/run-report.json".
func WriteJSON(r Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
