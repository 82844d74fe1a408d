package qualify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dealfinder/models"
)

var ErrMalformedVerdicts = errors.New("scorer response is not a JSON array")

// ParseVerdicts decodes the scorer's text into exactly n verdicts aligned
// with the batch. The text must be a JSON array. Elements that fail to
// decode, carry an out-of-range index, or repeat an index already seen are
// ignored, and any position left without a verdict gets FailedVerdict.
func ParseVerdicts(text string, n int) ([]models.Verdict, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") {
		return nil, ErrMalformedVerdicts
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdicts, err)
	}

	verdicts := make([]models.Verdict, n)
	seen := make([]bool, n)
	for _, elem := range raw {
		var v models.Verdict
		if err := json.Unmarshal(elem, &v); err != nil {
			continue
		}
		if v.Index < 1 || v.Index > n || seen[v.Index-1] {
			continue
		}
		seen[v.Index-1] = true
		verdicts[v.Index-1] = v
	}

	for i := range verdicts {
		if !seen[i] {
			verdicts[i] = models.FailedVerdict(i + 1)
		}
	}
	return verdicts, nil
}
