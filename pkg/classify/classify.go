// Package classify decides whether a transcript sounds like a live person
// or an automated phone system. It is a pure function over the transcript
// text with no I/O, so it can be exercised without any provider calls.
package classify

import "strings"

// Result is the outcome of classifying one transcript.
type Result int

const (
	// Automated covers IVR menus, hold-queue announcements, and anything
	// that does not clearly sound like a person.
	Automated Result = iota
	// Human indicates a live person is speaking.
	Human
)

func (r Result) String() string {
	if r == Human {
		return "human"
	}
	return "automated"
}

// humanIndicators are phrases a live representative tends to say:
// greetings, self-introductions, offers to help.
var humanIndicators = []string{
	"hello", "hi", "how can i help", "speaking", "this is", "my name is",
	"what can i do for you", "how may i assist", "good morning", "good afternoon",
}

// automatedIndicators are phrases typical of phone menus and hold queues.
var automatedIndicators = []string{
	"press", "dial", "enter", "menu", "option", "please hold", "your call is important",
	"estimated wait time", "all representatives are busy", "thank you for calling",
}

// Classify scores a transcript against both indicator sets. It returns
// Human only when the human score strictly exceeds the automated score and
// at least one human indicator matched; equal nonzero scores and indicator-
// free transcripts are Automated.
func Classify(transcript string) Result {
	lower := strings.ToLower(transcript)

	humanScore := score(lower, humanIndicators)
	automatedScore := score(lower, automatedIndicators)

	if humanScore > automatedScore && humanScore > 0 {
		return Human
	}
	return Automated
}

func score(lower string, indicators []string) int {
	n := 0
	for _, phrase := range indicators {
		n += strings.Count(lower, phrase)
	}
	return n
}
