package agent

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	finalAnswerMarker  = "Final Answer:"
	observationMarker  = "\nObservation:"
	missingAction      = "Invalid Format: Missing 'Action:' after 'Thought:'"
	missingActionInput = "Invalid Format: Missing 'Action Input:' after 'Action:'"
	answerAndAction    = "Parsing LLM output produced both a final answer and a parse-able action"
)

var (
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPattern  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputPattern = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	fencePattern       = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// parseError carries the observation that is sent back to the model.
type parseError struct {
	observation string
	output      string
}

func (e *parseError) Error() string {
	return fmt.Sprintf("could not parse model output: %s", e.observation)
}

// step is what one model turn asks for: a tool call or the final answer.
type step struct {
	action *Action
	final  string
	done   bool
}

// parseOutput reads a ReAct reply. Text after a hallucinated observation is
// discarded before parsing.
func parseOutput(text string) (step, error) {
	if i := strings.Index(text, observationMarker); i >= 0 {
		text = text[:i]
	}
	includesAnswer := strings.Contains(text, finalAnswerMarker)
	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if includesAnswer {
			return step{}, &parseError{observation: answerAndAction, output: text}
		}
		return step{action: &Action{
			Tool:  strings.TrimSpace(m[1]),
			Input: cleanInput(m[2]),
			Log:   text,
		}}, nil
	}
	if includesAnswer {
		i := strings.LastIndex(text, finalAnswerMarker)
		return step{final: strings.TrimSpace(text[i+len(finalAnswerMarker):]), done: true}, nil
	}
	if !actionOnlyPattern.MatchString(text) {
		return step{}, &parseError{observation: missingAction, output: text}
	}
	if !actionInputPattern.MatchString(text) {
		return step{}, &parseError{observation: missingActionInput, output: text}
	}
	return step{}, &parseError{observation: "Could not parse LLM output: `" + text + "`", output: text}
}

func cleanInput(s string) string {
	s = strings.TrimSpace(s)
	// a wrapping pair of quotes, but not quoted identifiers inside SQL
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' && strings.Count(s, `"`) == 2 {
		s = s[1 : len(s)-1]
	}
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(s)
}
