package steps

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/article-agent/internal/llm"
)

type topicsStep struct{ Deps }

func (s *topicsStep) Step() int    { return 3 }
func (s *topicsStep) Name() string { return StepTopics }

func (s *topicsStep) Execute(ctx context.Context, in Input) (*Result, error) {
	role, writingStyle, channelName := "你是一位资深的内容策划。", "- 无", ""
	if in.Channel != nil {
		if in.Channel.Role != "" {
			role = in.Channel.Role
		}
		writingStyle = bulletList(in.Channel.WritingStyle)
		channelName = in.Channel.Name
	}

	out, err := s.generate(ctx, call{
		prompt: "topics",
		data: map[string]string{
			"Role":          role,
			"WritingStyle":  writingStyle,
			"BriefAnalysis": briefTextOf(in),
			"Knowledge":     knowledgeOf(in, 3000),
		},
		temperature: 0.8,
		maxTokens:   6000,
	})
	if err != nil {
		return nil, err
	}

	proposals := ParseTopics(out)
	data, err := encode(proposals)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Output:     out,
		Data:       data,
		LogMessage: "proposing topics for channel " + channelName,
	}
	if len(proposals.Topics) == 0 {
		res.Notes = append(res.Notes, warn(3, "no topic headings found, pick a topic from the text"))
	} else {
		res.Notes = append(res.Notes, info(3, "%d topics proposed", len(proposals.Topics)))
	}
	return res, nil
}

// ParseTopics takes the deepest repeated heading level as topic titles.
// A single top-level heading is treated as the document title.
func ParseTopics(markdown string) TopicProposals {
	sections := parseSections(markdown)
	counts := map[int]int{}
	for _, s := range sections {
		if s.Level > 0 {
			counts[s.Level]++
		}
	}
	level := 0
	for l := 1; l <= 6; l++ {
		if counts[l] >= 2 {
			level = l
			break
		}
	}
	if level == 0 {
		for l := 1; l <= 6; l++ {
			if counts[l] > 0 {
				level = l
				break
			}
		}
	}

	proposals := TopicProposals{Topics: []Topic{}}
	for i, sec := range sections {
		if sec.Level != level {
			continue
		}
		topic := Topic{Title: topicTitle(sec.Title)}
		// points are list items until the next heading at this level or above
		topic.Points = append(topic.Points, sec.Items...)
		for _, sub := range sections[i+1:] {
			if sub.Level > 0 && sub.Level <= level {
				break
			}
			topic.Points = append(topic.Points, sub.Items...)
		}
		proposals.Topics = append(proposals.Topics, topic)
	}
	return proposals
}

// topicTitle strips a "选题N：" style prefix.
func topicTitle(heading string) string {
	heading = strings.TrimSpace(heading)
	if i := strings.IndexAny(heading, ":："); i >= 0 {
		prefix := strings.ToLower(heading[:i])
		if strings.Contains(prefix, "选题") || strings.Contains(prefix, "topic") {
			_, size := utf8.DecodeRuneInString(heading[i:])
			heading = strings.TrimSpace(heading[i+size:])
		}
	}
	return llm.Truncate(heading, 100)
}
