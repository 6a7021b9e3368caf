package transcript

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minRespondRunes is the minimum utterance length considered worth answering.
const minRespondRunes = 15

// ClassifyOptions carries the session flags that steer [ShouldRespond].
type ClassifyOptions struct {
	// AutoRespond mirrors the session's auto-response setting. When false,
	// captured speech never qualifies.
	AutoRespond bool

	// Manual marks operator-typed input, which always qualifies and skips
	// every other check.
	Manual bool
}

// trivialPhrases are short acknowledgements and fillers that never deserve a
// reply on their own. Checked by exact match on the lowercase trimmed text,
// and only for utterances of at most three words.
var trivialPhrases = map[string]struct{}{
	"ok": {}, "okay": {}, "yes": {}, "no": {}, "yeah": {}, "yep": {},
	"nope": {}, "sure": {}, "right": {}, "alright": {}, "all right": {},
	"uh huh": {}, "mm hmm": {}, "hmm": {}, "hm": {}, "oh": {}, "ah": {},
	"got it": {}, "i see": {}, "sounds good": {}, "makes sense": {},
	"thanks": {}, "thank you": {}, "you're welcome": {}, "no problem": {},
	"of course": {}, "exactly": {}, "totally": {}, "absolutely": {},
	"indeed": {}, "fine": {}, "good": {}, "great": {}, "cool": {},
	"nice": {}, "wow": {}, "perfect": {}, "awesome": {},
	"hello": {}, "hi": {}, "hey": {}, "bye": {}, "goodbye": {},
}

// classifyPattern pairs a compiled regex with a label for logging which rule
// suppressed an utterance.
type classifyPattern struct {
	name string
	re   *regexp.Regexp
}

// announcementPatterns match meeting-platform chatter and housekeeping speech
// that a copilot should never answer: mute and recording notices, join/leave
// announcements, time-of-day remarks, and audio-check phrasing.
var announcementPatterns = []classifyPattern{
	{
		name: "mute-notice",
		re:   regexp.MustCompile(`(?i)\b(you are|you're|i am|i'm) (still )?(on )?muted?\b`),
	},
	{
		name: "mute-request",
		re:   regexp.MustCompile(`(?i)\bplease (remember to )?(un)?mute\b`),
	},
	{
		name: "recording-notice",
		re:   regexp.MustCompile(`(?i)\b(recording|transcription) (has |is )?(been |being )?(started|stopped|paused|in progress)\b`),
	},
	{
		name: "meeting-recorded",
		re:   regexp.MustCompile(`(?i)\b(meeting|call|session) is being recorded\b`),
	},
	{
		name: "join-leave-notice",
		re:   regexp.MustCompile(`(?i)\bhas (joined|left) the (meeting|call|room)\b`),
	},
	{
		name: "time-on-clock",
		re:   regexp.MustCompile(`(?i)\b(it is|it's) (currently |now |about |almost )?\d{1,2}([:.]\d{2})?\s*([ap]\.?m\.?\b|o'?clock\b)`),
	},
	{
		name: "time-on-clock",
		re:   regexp.MustCompile(`(?i)\b\d{1,2} o'?clock\b`),
	},
	{
		name: "audio-check",
		re:   regexp.MustCompile(`(?i)^(can|could|do) (you|everyone|everybody|anyone|y'all) (hear|see) (me|us|my screen|this)\b`),
	},
	{
		name: "generic-offer",
		re:   regexp.MustCompile(`(?i)^(let me know if|if you (have any questions|need anything)|feel free to reach out)\b`),
	},
}

// ackLeadPatterns match utterances that open with a short acknowledgement.
// These are usually conversational glue ("okay, let's move on", "thanks
// everyone for joining") rather than something addressed to the copilot.
var ackLeadPatterns = []classifyPattern{
	{
		name: "thanks-lead-in",
		re:   regexp.MustCompile(`(?i)^(thanks|thank you)( so much| again)?( (everyone|everybody|all|guys|folks|team))?\b`),
	},
	{
		name: "ack-lead-in",
		re:   regexp.MustCompile(`(?i)^(sounds good|got it|makes sense|no worries|no problem|will do|understood|fair enough)\b`),
	},
	{
		name: "ok-transition",
		re:   regexp.MustCompile(`(?i)^(ok(ay)?|alright|all right|right then|cool|perfect|great)[,.!]? (so|then|well|cool|great|perfect|thanks|thank you|let'?s|moving on|next)\b`),
	},
}

// ShouldRespond decides whether an admitted transcript deserves a generated
// reply. It reports the decision and, when false, the name of the rule that
// suppressed it.
//
// Manual input always qualifies. Captured speech passes through a fixed
// chain: auto-response toggle, trivial-phrase list, minimum length,
// announcement patterns, acknowledgement lead-ins. The first matching rule
// wins.
func ShouldRespond(text string, opts ClassifyOptions) (bool, string) {
	if opts.Manual {
		return true, ""
	}
	if !opts.AutoRespond {
		return false, "auto-respond-disabled"
	}

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if len(strings.Fields(lower)) <= 3 {
		if _, ok := trivialPhrases[lower]; ok {
			return false, "trivial-phrase"
		}
	}
	if utf8.RuneCountInString(trimmed) < minRespondRunes {
		return false, "too-short"
	}
	for _, p := range announcementPatterns {
		if p.re.MatchString(trimmed) {
			return false, p.name
		}
	}
	for _, p := range ackLeadPatterns {
		if p.re.MatchString(trimmed) {
			return false, p.name
		}
	}
	return true, ""
}
