package behavior

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"rawbids/internal/bids"
)

const naValue = "n/a"
const missingValue = "NaN"

// Event is one row of an events.tsv table.
type Event struct {
	Onset        float64
	Duration     float64
	TrialType    string
	StimInfo     string
	Response     string
	ResponseTime string
	Accuracy     string
	Emotion      string
}

type markerPair struct {
	onset  string
	offset string
}

// trialOrder fixes the extraction order so output is stable; the table rows
// themselves end up sorted by onset regardless.
var trialOrder = []string{"fixS", "fix", "movie", "scenario", "judge", "replay", "emotion", "intensity", "wash"}

func trialMarkers(task string) (map[string]markerPair, error) {
	markers := map[string]markerPair{
		"fixS":      {"isiOnset", "isiOffset"},
		"fix":       {"IsiOnset", "IsiOffset"},
		"judge":     {"JudgeOnset", "JudgeOffset"},
		"replay":    {"ReplayOnset", "ReplayOffset"},
		"emotion":   {"EmoSelOnset", "EmoSelOffset"},
		"intensity": {"IntenSelOnset", "IntenSelOffset"},
		"wash":      {"WashStimOnset", "WashStimOffset"},
	}
	switch task {
	case bids.TaskMovies:
		markers["movie"] = markerPair{"MovieStimOnset", "MovieStimOffset"}
	case bids.TaskScenarios:
		markers["scenario"] = markerPair{"VigOnset", "VigOffset"}
	default:
		return nil, fmt.Errorf("no trial markers for task %q", task)
	}
	return markers, nil
}

// Subjects scanned before the template fix recorded WashStimOffset at the
// wrong point; their wash duration comes from the block-end marker instead.
// Three of them were rescanned correctly for day3.
var (
	washPatchSubjects = map[string]bool{
		"ER0009": true, "ER0016": true, "ER0024": true, "ER0036": true,
		"ER0041": true, "ER0046": true, "ER0052": true, "ER0057": true,
		"ER0060": true, "ER0071": true, "ER0072": true, "ER0074": true,
		"ER0075": true, "ER0093": true, "ER0103": true,
	}
	washPatchDay2Only = map[string]bool{
		"ER0046": true, "ER0074": true, "ER0075": true,
	}
)

func applyWashPatch(markers map[string]markerPair, task, sessionLabel, subjectID string) {
	if !washPatchSubjects[subjectID] {
		return
	}
	if sessionLabel == "day3" && washPatchDay2Only[subjectID] {
		return
	}
	switch task {
	case bids.TaskMovies:
		markers["wash"] = markerPair{"WashStimOnset", "movieblockEnd"}
	case bids.TaskScenarios:
		markers["wash"] = markerPair{"WashStimOnset", "textblockEnd"}
	}
}

// BuildEvents extracts the events table from one task log.
func BuildEvents(taskFile, task, sessionLabel, subjectID string) ([]Event, error) {
	markers, err := trialMarkers(task)
	if err != nil {
		return nil, err
	}
	applyWashPatch(markers, task, sessionLabel, subjectID)

	rows, err := readTaskLog(taskFile)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, name := range trialOrder {
		pair, ok := markers[name]
		if !ok {
			continue
		}
		events = append(events, extractTrialType(rows, name, pair)...)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Onset < events[j].Onset })
	return events, nil
}

func extractTrialType(rows []logRow, name string, pair markerPair) []Event {
	var onsets, offsets []logRow
	for _, row := range rows {
		switch row.Type {
		case pair.onset:
			onsets = append(onsets, row)
		case pair.offset:
			offsets = append(offsets, row)
		}
	}
	n := len(onsets)
	if len(offsets) < n {
		n = len(offsets)
	}

	judgeResponses := judgeResponses(rows)

	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		event := Event{
			Onset:        round2(onsets[i].TimeFromStart),
			Duration:     round2(offsets[i].TimeFromStart - onsets[i].TimeFromStart),
			TrialType:    name,
			StimInfo:     stimInfo(name, onsets[i]),
			Response:     naValue,
			ResponseTime: naValue,
			Accuracy:     naValue,
			Emotion:      naValue,
		}
		switch name {
		case "movie", "scenario":
			if event.StimInfo != naValue && event.StimInfo != missingValue {
				event.Emotion = strings.SplitN(event.StimInfo, "_", 2)[0]
			}
		case "emotion", "intensity":
			event.Response = orMissing(offsets[i].StimDescrip)
			event.ResponseTime = formatFloat(round2(offsets[i].TimeFromStart - onsets[i].TimeFromStart))
		case "judge":
			if i < len(judgeResponses) {
				event.Response = judgeResponses[i].response
				event.Accuracy = judgeResponses[i].accuracy
				event.ResponseTime = judgeResponses[i].responseTime
			}
		}
		events = append(events, event)
	}
	return events
}

func stimInfo(name string, onset logRow) string {
	switch name {
	case "fixS", "fix":
		return "fixation_cross"
	case "replay":
		return "prompt_replay"
	case "judge":
		return "prompt_in_out"
	case "emotion":
		return "select_emotion"
	case "intensity":
		return "select_intensity"
	case "movie", "scenario", "wash":
		return orMissing(onset.StimDescrip)
	default:
		return naValue
	}
}

type judgeResponse struct {
	response     string
	accuracy     string
	responseTime string
}

// judgeResponses parses JudgeResponse rows, whose stimtype packs the keypress
// and its correctness into one token like "1correct". The response time was
// stashed in stimdescrip.
func judgeResponses(rows []logRow) []judgeResponse {
	var responses []judgeResponse
	for _, row := range rows {
		if row.Type != "JudgeResponse" {
			continue
		}
		resp := judgeResponse{response: missingValue, accuracy: missingValue, responseTime: missingValue}
		if row.StimType != "" {
			resp.response = row.StimType[:1]
			resp.accuracy = row.StimType[1:]
		}
		if row.StimDescrip != "" {
			if rt, err := strconv.ParseFloat(row.StimDescrip, 64); err == nil {
				resp.responseTime = formatFloat(round2(rt))
			}
		}
		responses = append(responses, resp)
	}
	return responses
}

// WriteEventsTSV writes the table with the fixed BIDS column set.
func WriteEventsTSV(events []Event, path string) error {
	var sb strings.Builder
	sb.WriteString("onset\tduration\ttrial_type\tstim_info\tresponse\tresponse_time\taccuracy\temotion\n")
	for _, event := range events {
		sb.WriteString(strings.Join([]string{
			formatFloat(event.Onset),
			formatFloat(event.Duration),
			event.TrialType,
			event.StimInfo,
			event.Response,
			event.ResponseTime,
			event.Accuracy,
			event.Emotion,
		}, "\t"))
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write events tsv: %w", err)
	}
	return nil
}

func orMissing(value string) string {
	if value == "" {
		return missingValue
	}
	return value
}

func round2(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
