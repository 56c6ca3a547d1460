package faq

import (
	"fmt"
	"strings"
)

type smallTalk struct {
	phrases   []string
	reply     string
	matchType MatchType
	matchedBy string
}

// smallTalkTable answers greetings and questions about the assistant itself.
// Entries are checked in order; %[1]s expands to the institution name.
var smallTalkTable = []smallTalk{
	{
		phrases:   []string{"good morning", "good afternoon", "good evening", "good day"},
		reply:     "Hello! How can I help you with %[1]s today?",
		matchType: MatchTypeGreeting, matchedBy: MatchedByGreeting,
	},
	{
		phrases:   []string{"hello", "hi", "hey", "howdy", "greetings", "whats up", "sup", "wassup"},
		reply:     "Hi there! Ask me anything about %[1]s admissions, fees, accommodation or campus life.",
		matchType: MatchTypeGreeting, matchedBy: MatchedByGreeting,
	},
	{
		phrases:   []string{"how are you", "how are you doing", "you good"},
		reply:     "I'm doing great, thanks for asking! What %[1]s information do you need?",
		matchType: MatchTypeGreeting, matchedBy: MatchedByGreeting,
	},
	{
		phrases:   []string{"what can you do", "what can you help with", "help"},
		reply:     "I can answer questions about %[1]s: admissions and cut-off marks, school fees, hostels and accommodation, academics, campus life and transport. Just type your question!",
		matchType: MatchTypeCommon, matchedBy: MatchedByCommon,
	},
	{
		phrases:   []string{"who are you", "what is your name", "are you a robot", "are you real"},
		reply:     "I'm the %[1]s Smart Assistant, a chatbot that answers questions from the %[1]s knowledge base.",
		matchType: MatchTypeCommon, matchedBy: MatchedByCommon,
	},
	{
		phrases:   []string{"how do you work"},
		reply:     "I match your question against a curated list of %[1]s FAQs. When I don't know something I save it so an admin can add the answer.",
		matchType: MatchTypeCommon, matchedBy: MatchedByCommon,
	},
	{
		phrases:   []string{"thank you", "thanks", "thank", "thx", "appreciate it"},
		reply:     "You're welcome! Is there anything else you'd like to know about %[1]s?",
		matchType: MatchTypeCommon, matchedBy: MatchedByCommon,
	},
	{
		phrases:   []string{"goodbye", "bye", "see you", "see you later", "take care", "farewell"},
		reply:     "Goodbye! Come back any time you have more %[1]s questions.",
		matchType: MatchTypeCommon, matchedBy: MatchedByCommon,
	},
}

// replySmallTalk answers a message that consists only of small talk. A
// greeting followed by a real question ("hi, how much are fees?") is left to
// the engine.
func replySmallTalk(normalizer *Normalizer, institution, question string) (AskResponse, bool) {
	words := wordTokens(question)
	if len(words) == 0 {
		return AskResponse{}, false
	}
	for _, talk := range smallTalkTable {
		for _, phrase := range talk.phrases {
			parts := strings.Fields(phrase)
			rest, ok := removeTokens(words, parts)
			if !ok {
				continue
			}
			if len(normalizer.Tokens(strings.Join(rest, " "))) > 0 {
				continue
			}
			return AskResponse{
				Answer:     fmt.Sprintf(talk.reply, institution),
				Confidence: 1,
				Matched:    true,
				MatchType:  talk.matchType,
				MatchedBy:  talk.matchedBy,
			}, true
		}
	}
	return AskResponse{}, false
}

// removeTokens drops the first contiguous occurrence of needle from words.
func removeTokens(words, needle []string) ([]string, bool) {
	for i := 0; i+len(needle) <= len(words); i++ {
		if hasPrefixTokens(words[i:], needle) {
			rest := make([]string, 0, len(words)-len(needle))
			rest = append(rest, words[:i]...)
			rest = append(rest, words[i+len(needle):]...)
			return rest, true
		}
	}
	return nil, false
}
