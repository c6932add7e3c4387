package arbiter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

func buildPrompt(original, candidate, hint string) string {
	var sb strings.Builder

	if hint != "" {
		sb.WriteString("请参考以下相关文本进行分析：\n\n相关文本：\n")
		sb.WriteString(hint)
		sb.WriteString("\n\n")
	}

	sb.WriteString("请严格分析以下两段文本的质量：\n\n原文：\n")
	sb.WriteString(original)
	sb.WriteString("\n\n润色后：\n")
	sb.WriteString(candidate)
	sb.WriteString(`

请从以下几个方面进行严格分析：

1. 专业性和准确性：专业术语的使用是否准确，是否符合专业领域的表达习惯，是否与相关文本保持一致
2. 语义一致性：是否保持了原文的核心含义，是否存在语义偏差、重复或冗余
3. 语言表达：用词是否准确，是否存在语法错误，表达是否流畅自然
4. 逻辑连贯性：句子之间的逻辑关系是否合理，整体结构是否清晰
5. 改进建议：如果原文更好，请说明原因；如果润色后的文本更好，请说明具体改进之处

请用中文回答，分析必须客观、严谨。
最后请单独输出两行评分（0到10分）：
原文得分：X
润色后得分：Y
`)

	return sb.String()
}

func buildComparePrompt(original string, candidates map[string]string) string {
	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("请综合分析以下润色结果：\n\n原文：\n")
	sb.WriteString(original)
	sb.WriteString("\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("\n%s 润色：\n%s\n", name, candidates[name]))
	}
	sb.WriteString(`
请从以下几个方面进行分析：
1. 各润色版本的优缺点比较
2. 哪个版本更符合原文的语义
3. 哪个版本的专业性更强
4. 哪个版本的语言表达更流畅
5. 给出最终建议：应该选择哪个版本，或者如何结合各版本的优点

请用中文回答，要求分析客观、专业、详细。`)

	return sb.String()
}

var (
	originalScoreRe  = regexp.MustCompile(`(?i)(?:original(?:[ _]text)?|原文)[ _]?(?:score|得分|评分|分数)\s*[*]*\s*[:：=]\s*[*]*\s*(\d+(?:\.\d+)?)`)
	rewrittenScoreRe = regexp.MustCompile(`(?i)(?:rewritten|polished|candidate|润色后?(?:的)?(?:文本|版本)?|改写后?(?:的)?(?:文本|版本)?)[ _]?(?:score|得分|评分|分数)\s*[*]*\s*[:：=]\s*[*]*\s*(\d+(?:\.\d+)?)`)
)

// rejectPhrases mean the judge kept the original; endorsePhrases mean it
// preferred the rewrite. Rejections are checked first.
var (
	rejectPhrases = []string{
		"原文更好", "原文更佳", "原文更优", "保留原文", "建议保留原文", "建议使用原文",
		"润色后的文本存在明显问题", "不如原文",
		"original is better", "keep the original", "prefer the original",
	}
	endorsePhrases = []string{
		"润色后的文本更好", "润色后更好", "润色后的版本更好", "润色后的文本更佳",
		"建议采用润色后", "建议使用润色后", "没有发现明显问题",
		"rewritten version is better", "rewrite is better", "polished version is better",
	}
)

// parseVerdict reduces a judge reply to a Verdict. Labelled scores win when
// both are present; otherwise the reply is scanned for phrases; otherwise
// the original is kept.
func parseVerdict(analysis string) Verdict {
	v := Verdict{Analysis: analysis, Preferred: PreferOriginal, Basis: BasisDefault}

	orig, okOrig := lastScore(originalScoreRe, analysis)
	rew, okRew := lastScore(rewrittenScoreRe, analysis)
	if okOrig && okRew {
		v.Scores = &Scores{Original: orig, Rewritten: rew}
		v.Basis = BasisScores
		if rew > orig {
			v.Preferred = PreferRewritten
		}
		return v
	}

	lower := strings.ToLower(analysis)
	for _, p := range rejectPhrases {
		if strings.Contains(lower, p) {
			v.Basis = BasisPhrases
			return v
		}
	}
	for _, p := range endorsePhrases {
		if strings.Contains(lower, p) {
			v.Basis = BasisPhrases
			v.Preferred = PreferRewritten
			return v
		}
	}
	return v
}

// lastScore returns the final labelled score in s. The prompt asks for a
// 0-10 scale but judges sometimes answer out of 100; both labels come from
// the same reply, so the pair is compared as given.
func lastScore(re *regexp.Regexp, s string) (float64, bool) {
	matches := re.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
