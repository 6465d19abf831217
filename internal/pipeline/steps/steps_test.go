package steps

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/research"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/vocab"
)

func newInput(step int) Input {
	task := types.NewWritingTask(uuid.New(), "", "写一篇关于孩子睡眠的文章，2000字", time.Unix(1700000000, 0))
	task.CurrentStep = step
	return Input{
		Task:  task,
		Prior: map[int]types.StepOutput{},
		Channel: &types.Channel{
			Name:           "深度阅读",
			Role:           "你是一位温和的育儿作者。",
			WritingStyle:   []string{"口语化"},
			MustDo:         []string{"给出可执行的建议"},
			MustNotDo:      []string{"制造焦虑"},
			BlockedPhrases: []string{"赋能"},
			MaterialTags:   []string{"#睡眠"},
		},
	}
}

func priorData(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

type fakeSearcher struct{ results []research.Result }

func (f fakeSearcher) Available() bool { return true }
func (f fakeSearcher) Search(context.Context, string, int) ([]research.Result, error) {
	return f.results, nil
}

type fakeLister []types.StyleSample

func (f fakeLister) ListSamples(context.Context, uuid.UUID) ([]types.StyleSample, error) {
	return f, nil
}

func TestParseBriefAnalysis(t *testing.T) {
	text := "1. 主题：孩子的睡眠\n2. 目标读者: 新手父母\n3. 期望字数：2000\n4. **特殊要求**：少用术语\n5. 关键词：睡眠、作息, #习惯 焦虑\n其他说明"
	a := ParseBriefAnalysis(text)

	assert.Equal(t, "孩子的睡眠", a.Theme)
	assert.Equal(t, "新手父母", a.Audience)
	assert.Equal(t, "2000", a.Length)
	assert.Equal(t, "少用术语", a.Requirements)
	assert.Equal(t, []string{"睡眠", "作息", "习惯", "焦虑"}, a.Keywords)

	assert.Empty(t, ParseBriefAnalysis("nothing labelled").Keywords)
}

func TestBriefStep(t *testing.T) {
	stub := llm.StubText("1. 主题：睡眠\n5. 关键词：睡眠、作息")
	res, err := (&briefStep{Deps{Generator: stub}}).Execute(context.Background(), newInput(1))
	require.NoError(t, err)

	var a BriefAnalysis
	require.NoError(t, json.Unmarshal(res.Data, &a))
	assert.Equal(t, []string{"睡眠", "作息"}, a.Keywords)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.3, calls[0].Temperature, 1e-9)
	assert.Contains(t, calls[0].User, "孩子睡眠")
}

func TestKnowledgeStep(t *testing.T) {
	long := strings.Repeat("结", 400)
	stub := llm.StubText("```json\n{\"knowledge\": \"笔记内容\", \"summary\": \"" + long + "\"}\n```")
	deps := Deps{
		Generator: stub,
		Searcher:  fakeSearcher{results: []research.Result{{Title: "来源", URL: "https://a.org", Content: "摘要", Score: 0.8}}},
		Research:  research.DefaultOptions(),
	}

	in := newInput(2)
	in.Prior[1] = types.StepOutput{Step: 1, Output: "1. 主题：睡眠", Data: priorData(t, BriefAnalysis{Theme: "睡眠"})}

	res, err := (&knowledgeStep{deps}).Execute(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, res.Fields.KnowledgeText)
	assert.Equal(t, "笔记内容", *res.Fields.KnowledgeText)
	require.NotNil(t, res.Fields.KnowledgeSummary)
	assert.Equal(t, summaryRunes, len([]rune(*res.Fields.KnowledgeSummary)))
	assert.Contains(t, res.Output, "https://a.org")

	var k Knowledge
	require.NoError(t, json.Unmarshal(res.Data, &k))
	assert.Equal(t, "睡眠", k.Query)
	assert.True(t, k.WebSearch)
	require.Len(t, k.Sources, 1)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSON)
	assert.Contains(t, calls[0].User, "[Source 1] 来源")
}

func TestKnowledgeStep_NoSearchFreeText(t *testing.T) {
	stub := llm.StubText("只是一段文字")
	res, err := (&knowledgeStep{Deps{Generator: stub, Research: research.DefaultOptions()}}).Execute(context.Background(), newInput(2))
	require.NoError(t, err)

	assert.Equal(t, "只是一段文字", *res.Fields.KnowledgeText)
	assert.Equal(t, "只是一段文字", *res.Fields.KnowledgeSummary)
	require.NotEmpty(t, res.Notes)
	assert.Equal(t, types.LogWarn, res.Notes[0].Level)
}

func TestParseTopics(t *testing.T) {
	markdown := `# 选题方案

### 选题1：睡不着的孩子
- 核心观点：作息比方法重要
- 大纲：
  1. 场景

### 选题2：Bedtime rituals
- 核心观点：仪式感

#### 优劣分析
- 优点：好写
`
	proposals := ParseTopics(markdown)
	require.Len(t, proposals.Topics, 2)
	assert.Equal(t, "睡不着的孩子", proposals.Topics[0].Title)
	assert.Equal(t, []string{"核心观点：作息比方法重要", "大纲："}, proposals.Topics[0].Points)
	assert.Equal(t, "Bedtime rituals", proposals.Topics[1].Title)
	assert.Equal(t, []string{"核心观点：仪式感", "优点：好写"}, proposals.Topics[1].Points)

	assert.Empty(t, ParseTopics("no headings at all").Topics)
}

func TestTopicOf(t *testing.T) {
	in := newInput(4)
	in.Task.Title = "标题"
	assert.Equal(t, "标题", TopicOf(in))

	in.Prior[3] = types.StepOutput{Step: 3, Data: priorData(t, TopicProposals{Topics: []Topic{{Title: "第一个选题"}}})}
	assert.Equal(t, "第一个选题", TopicOf(in))

	in.Task.SelectedTopic = "选定的"
	assert.Equal(t, "选定的", TopicOf(in))
}

func TestChecklistStep(t *testing.T) {
	stub := llm.StubText("## AI负责的任务\n- [ ] 写初稿\n\n## 用户需要提供的内容\n- [ ] 真实案例：一次失眠\n- [x] 个人观点")
	in := newInput(4)
	in.Task.SelectedTopic = "睡眠"

	res, err := (&checklistStep{Deps{Generator: stub}}).Execute(context.Background(), in)
	require.NoError(t, err)

	var c Checklist
	require.NoError(t, json.Unmarshal(res.Data, &c))
	assert.Equal(t, "睡眠", c.Topic)
	require.Len(t, c.Sections, 2)
	assert.Equal(t, []string{"写初稿"}, c.Sections[0].Items)
	assert.Equal(t, []string{"真实案例：一次失眠", "个人观点"}, c.Sections[1].Items)
}

func TestStylePlanStep(t *testing.T) {
	stub := llm.StubText("## 风格参考要点")
	sampleID := uuid.New()
	deps := Deps{
		Generator: stub,
		Samples: fakeLister{
			{ID: uuid.New(), Title: "无关", CustomTags: []string{"#职场"}},
			{ID: sampleID, Title: "睡前故事", CustomTags: []string{"#睡眠"}, IsAnalyzed: true},
		},
	}

	in := newInput(5)
	in.Task.SelectedTopic = "睡眠"
	in.Style = style.Merge(style.Layers{BannedVocabulary: []string{"赋能"}})
	in.Materials = &MaterialSet{
		Method: "keyword",
		Query:  "睡眠",
		Curated: &curation.Result{
			Short: []curation.Curated{{Candidate: curation.Candidate{ID: "m1", Content: "孩子十点才睡"}}},
			Stats: curation.Stats{Input: 2, Short: 1},
		},
	}

	res, err := (&stylePlanStep{deps}).Execute(context.Background(), in)
	require.NoError(t, err)

	var plan StylePlan
	require.NoError(t, json.Unmarshal(res.Data, &plan))
	assert.Equal(t, "keyword", plan.RetrievalMethod)
	require.Len(t, plan.Materials, 1)
	require.Len(t, plan.Samples, 2)
	assert.Equal(t, sampleID.String(), plan.Samples[0].SampleID)
	require.NotNil(t, plan.Style)
	assert.Equal(t, style.SourceBuiltinDefault, plan.Style.SourceLabel)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "避免词汇：赋能")
	assert.Contains(t, calls[0].User, "[M1] 孩子十点才睡")
	assert.InDelta(t, 0.5, calls[0].Temperature, 1e-9)
}

func TestMaterialsStep_NoModelCall(t *testing.T) {
	stub := llm.NewStub(nil)
	in := newInput(6)
	in.Prior[5] = types.StepOutput{Step: 5, Data: priorData(t, StylePlan{
		Materials:       []curation.Curated{{}, {}, {}},
		RetrievalMethod: "vector",
	})}

	res, err := (&materialsStep{Deps{Generator: stub}}).Execute(context.Background(), in)
	require.NoError(t, err)

	assert.Empty(t, stub.Calls())
	assert.Contains(t, res.Output, "已检索素材：3 条（vector）")

	var sheet MaterialsSheet
	require.NoError(t, json.Unmarshal(res.Data, &sheet))
	assert.Equal(t, 3, sheet.MaterialCount)
	assert.Contains(t, sheet.Items, "真实案例和经历")
}

func TestDraftStep(t *testing.T) {
	stub := llm.StubText("# 睡眠\n\n正文")
	in := newInput(7)
	in.Task.SelectedTopic = "睡眠"
	in.Task.UserMaterials = "我家孩子的例子"
	in.Style = style.Merge(style.Layers{BannedVocabulary: []string{"赋能", "抓手"}})
	in.Prior[5] = types.StepOutput{Step: 5, Data: priorData(t, StylePlan{
		Materials: []curation.Curated{{Candidate: curation.Candidate{Content: "长素材"}, Summary: "素材摘要"}},
	})}

	res, err := (&draftStep{Deps{Generator: stub}}).Execute(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, res.Fields.DraftText)
	assert.Equal(t, "# 睡眠\n\n正文", *res.Fields.DraftText)
	assert.Nil(t, res.Fields.FinalText)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "你是一位温和的育儿作者。")
	assert.Contains(t, calls[0].System, "赋能、抓手")
	assert.Contains(t, calls[0].System, "- 制造焦虑")
	assert.Contains(t, calls[0].User, "[M1] 素材摘要")
	assert.Contains(t, calls[0].User, "我家孩子的例子")
	assert.Equal(t, 8000, calls[0].MaxOutputTokens)
}

func TestReviewStep(t *testing.T) {
	review := "## 审校报告\n\n### 发现的问题\n1. [风格] 套话\n\n### 修改后版本\n```markdown\n# 标题\n\n我们要赋能孩子，赋能父母。\n```\n"
	stub := llm.StubText(review)

	global := make(vocab.List, 0, 25)
	for i := 0; i < 25; i++ {
		global = append(global, vocab.BlockedPhrase{Pattern: "词" + string(rune('A'+i)), Replacement: "替"})
	}
	deps := Deps{Generator: stub, Blocked: vocab.Static(global)}

	in := newInput(8)
	in.Task.DraftText = "初稿"

	res, err := (&reviewStep{deps}).Execute(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, res.Fields.FinalText)
	assert.Equal(t, "# 标题\n\n我们要赋能孩子，赋能父母。", *res.Fields.FinalText)

	var r Review
	require.NoError(t, json.Unmarshal(res.Data, &r))
	assert.True(t, r.Revised)
	require.Len(t, r.BlockedHits, 1)
	assert.Equal(t, "赋能", r.BlockedHits[0].Phrase)
	assert.Equal(t, 2, r.BlockedHits[0].Count)
	assert.Equal(t, 26, r.BlockedListed)

	system := stub.Calls()[0].System
	assert.Contains(t, system, "- 词T → 替")
	assert.NotContains(t, system, "词U")
	assert.Contains(t, system, "频道屏蔽词：\n赋能")
}

func TestReviewStep_NoRevisedSectionAndNoDraft(t *testing.T) {
	stub := llm.StubText("只有意见，没有修改稿")
	in := newInput(8)
	in.Prior[7] = types.StepOutput{Step: 7, Output: "初稿"}

	res, err := (&reviewStep{Deps{Generator: stub}}).Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "只有意见，没有修改稿", *res.Fields.FinalText)

	_, err = (&reviewStep{Deps{Generator: stub}}).Execute(context.Background(), newInput(8))
	assert.Error(t, err)
}

func TestIllustrationStep(t *testing.T) {
	stub := llm.StubText("## 配图方案\n\n### 图1：开头\n- 描述：床\n\n### 图2：结尾\n- 描述：月亮")
	in := newInput(9)
	in.Task.FinalText = "# 标题\n\n" + strings.Repeat("字", 3000)

	res, err := (&illustrationStep{Deps{Generator: stub}}).Execute(context.Background(), in)
	require.NoError(t, err)

	var ill Illustration
	require.NoError(t, json.Unmarshal(res.Data, &ill))
	assert.Equal(t, 2, ill.ImageCount)
	assert.Contains(t, ill.ArticleHTML, "<h1>标题</h1>")

	user := stub.Calls()[0].User
	assert.Less(t, len([]rune(user)), 2100)
}

func TestGenerationErrorPropagates(t *testing.T) {
	stub := llm.NewStub(func(llm.Request) (string, error) { return "", errors.New("quota exceeded") })
	_, err := (&draftStep{Deps{Generator: stub}}).Execute(context.Background(), newInput(7))
	require.Error(t, err)

	var genErr *llm.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestTextAfterHeading(t *testing.T) {
	body, ok := textAfterHeading("# a\ntext\n## Revised version\n\nfinal\nlines\n", "Revised")
	assert.True(t, ok)
	assert.Equal(t, "final\nlines", body)

	_, ok = textAfterHeading("# a\n## Revised\n\n", "Revised")
	assert.False(t, ok)

	_, ok = textAfterHeading("Revised but not a heading\nbody", "Revised")
	assert.False(t, ok)
}

func TestRenderStyle(t *testing.T) {
	s := style.Merge(style.Layers{Override: &types.UserStyleOverride{CustomRequirement: "多用对话"}})
	out := RenderStyle(s)
	assert.Contains(t, out, "结构顺序：hook → problem")
	assert.Contains(t, out, "特别要求：多用对话")
	assert.Equal(t, "无", RenderStyle(nil))
}
