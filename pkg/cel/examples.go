package cel

// SkipRuleExamples are sample intake skip rules. A rule that evaluates to
// true drops the message before classification.
var SkipRuleExamples = map[string]string{
	"noreply_sender":    `sender.endsWith("@noreply.example.com")`,
	"sender_domain":     `sender.lowerAscii().endsWith("@newsletter.example.org")`,
	"subject_prefix":    `subject.startsWith("[Automated]")`,
	"subject_contains":  `subject.lowerAscii().contains("unsubscribe")`,
	"source_in_list":    `source in ["rss", "status-page"]`,
	"empty_body":        `size(body) == 0`,
	"combined":          `source == "gmail" && sender.contains("notifications@")`,
	"regex_match":       `subject.matches("^Your (daily|weekly) digest")`,
	"negated_condition": `!(sender.endsWith("@example.com")) && subject == ""`,
}
