package behavior

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Rating is one emotion prompt from the post-rest questionnaire.
type Rating struct {
	Prompt    string
	RespInt   string
	RespAlpha string
}

// "88" marks a prompt the participant never answered.
var ratingLabels = map[string]string{
	"1":  "Not At All",
	"2":  "Slightly",
	"3":  "Moderately",
	"4":  "Very",
	"88": "NR",
}

// BuildRestRatings pairs RatingOnset prompts with RatingResponse keypresses
// and returns the table sorted by prompt.
func BuildRestRatings(ratingFile string) ([]Rating, error) {
	rows, err := readTaskLog(ratingFile)
	if err != nil {
		return nil, err
	}

	var prompts, responses []string
	for _, row := range rows {
		switch row.Type {
		case "RatingOnset":
			prompts = append(prompts, row.StimDescrip)
		case "RatingResponse":
			resp := row.StimType
			if resp == "" {
				resp = "88"
			}
			responses = append(responses, resp)
		}
	}
	if len(prompts) != len(responses) {
		return nil, fmt.Errorf("rest ratings %s: %d prompts but %d responses",
			ratingFile, len(prompts), len(responses))
	}

	ratings := make([]Rating, len(prompts))
	for i := range prompts {
		alpha, ok := ratingLabels[responses[i]]
		if !ok {
			return nil, fmt.Errorf("rest ratings %s: unexpected response %q", ratingFile, responses[i])
		}
		ratings[i] = Rating{Prompt: prompts[i], RespInt: responses[i], RespAlpha: alpha}
	}
	sort.Slice(ratings, func(i, j int) bool { return ratings[i].Prompt < ratings[j].Prompt })
	return ratings, nil
}

// WriteRestRatings writes the ratings as a tab-separated table.
func WriteRestRatings(ratings []Rating, path string) error {
	var sb strings.Builder
	sb.WriteString("prompt\tresp_int\tresp_alpha\n")
	for _, rating := range ratings {
		sb.WriteString(rating.Prompt + "\t" + rating.RespInt + "\t" + rating.RespAlpha + "\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write rest ratings: %w", err)
	}
	return nil
}
