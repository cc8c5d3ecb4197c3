package behavior

import (
	"encoding/json"
	"fmt"
	"os"

	"rawbids/internal/bids"
)

type columnDoc struct {
	LongName    string            `json:"LongName"`
	Description string            `json:"Description"`
	Levels      map[string]string `json:"Levels,omitempty"`
}

// WriteEventsJSON writes the events.json companion documenting the custom
// columns of the events table.
func WriteEventsJSON(task, path string) error {
	trialLevels := map[string]string{
		"fixS":      "Start, end fixations",
		"fix":       "Fixation cross",
		"judge":     "Indoor, outdoor judgment",
		"replay":    "Mentally replay stimulus",
		"emotion":   "Decide which emotion describes the stimulus",
		"intensity": "Decide emotional intensity level of stimulus",
		"wash":      "A colored masking image",
	}
	switch task {
	case bids.TaskMovies:
		trialLevels["movie"] = "Movie clip of emotional event"
	case bids.TaskScenarios:
		trialLevels["scenario"] = "Vignette of emotional event"
	}

	doc := map[string]columnDoc{
		"trial_type": {
			LongName:    fmt.Sprintf("Emotion Task with %s", task),
			Description: "Indicator of stimulus or response type",
			Levels:      trialLevels,
		},
		"stim_info": {
			LongName:    "Short description of stimulus",
			Description: "Indicator of screen prompt or stimulus presented",
			Levels: map[string]string{
				"fixation_cross":   "Fixation Cross",
				"prompt_replay":    "Prompt to replay stimulus",
				"prompt_in_out":    "Prompt to make indoor, outdoor judgment",
				"select_emotion":   "Prompt to select emotion from list",
				"select_intensity": "Prompt to specify emotion intensity",
				"file name":        "File used in stimulus generation",
			},
		},
		"response": {
			LongName:    "Response made by participant",
			Description: "Captured response of participant",
			Levels: map[string]string{
				"numeric": "Indoor/outdoor judgment or intensity rating",
				"alpha":   "Emotion selected from list",
			},
		},
		"accuracy": {
			LongName:    "Accuracy of participant response",
			Description: "Whether response was correct",
			Levels: map[string]string{
				"correct": "Response was correct",
				"wrong":   "Response was incorrect",
			},
		},
		"emotion": {
			LongName:    "Emotion category of stimulus",
			Description: "Intended emotion the movie or scenario was designed to elicit",
		},
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode events sidecar: %w", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write events sidecar: %w", err)
	}
	return nil
}
