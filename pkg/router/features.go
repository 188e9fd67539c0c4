package router

import (
	"regexp"

	"github.com/pario-ai/chorus/pkg/models"
)

// Features are the lexical signals extracted from a prompt.
type Features struct {
	Reasoning  bool
	Creativity bool
	Accuracy   bool
	Speed      bool
	Code       bool
	Research   bool
	Multimodal bool
}

// Patterns cover Simplified Chinese, Traditional Chinese and English.
var (
	reasoningRe  = regexp.MustCompile(`(?i)推理|分析|比较|比較|论证|論證|设计|設計|排查|诊断|診斷|原因|\b(reason(ing)?|analy[sz]e|analysis|compare|design|diagnose|troubleshoot|root cause)\b`)
	creativityRe = regexp.MustCompile(`(?i)创意|創意|创新|創新|想象|想像|头脑风暴|腦力激盪|\b(creative|creativity|brainstorm|imagine|innovative)\b`)
	accuracyRe   = regexp.MustCompile(`(?i)准确|準確|精确|精確|严谨|嚴謹|详细|詳細|完整|\b(accurate|precise|rigorous|detailed|thorough)\b`)
	speedRe      = regexp.MustCompile(`(?i)快速|立即|快点|快點|紧急|緊急|\b(quick(ly)?|fast|urgent|asap|immediately)\b`)
	codeRe       = regexp.MustCompile(`(?i)代码|代碼|程式|编程|編程|脚本|腳本|算法|演算法|函数|函數|\b(code|coding|programs?|scripts?|algorithms?|functions?)\b`)
	researchRe   = regexp.MustCompile(`(?i)研究|查询|查詢|搜索|搜尋|最新|信息|資訊|\b(research|search|latest|lookup|news)\b`)
	multimodalRe = regexp.MustCompile(`(?i)图|圖|视频|視頻|影片|音频|音訊|多媒体|多媒體|\b(images?|videos?|audio|diagrams?|multimedia)\b`)
)

// Analyze evaluates every feature predicate against prompt.
func Analyze(prompt string) Features {
	return Features{
		Reasoning:  reasoningRe.MatchString(prompt),
		Creativity: creativityRe.MatchString(prompt),
		Accuracy:   accuracyRe.MatchString(prompt),
		Speed:      speedRe.MatchString(prompt),
		Code:       codeRe.MatchString(prompt),
		Research:   researchRe.MatchString(prompt),
		Multimodal: multimodalRe.MatchString(prompt),
	}
}

// Names lists the matched features in a fixed order.
func (f Features) Names() []string {
	var out []string
	for _, x := range []struct {
		on   bool
		name string
	}{
		{f.Reasoning, "reasoning"},
		{f.Creativity, "creativity"},
		{f.Accuracy, "accuracy"},
		{f.Speed, "speed"},
		{f.Code, "code"},
		{f.Research, "research"},
		{f.Multimodal, "multimodal"},
	} {
		if x.on {
			out = append(out, x.name)
		}
	}
	return out
}

// Score awards fixed points for each matched feature the profile is good at.
func Score(p models.ModelProfile, f Features) int {
	score := 0
	if f.Reasoning && p.Capabilities.Reasoning > 85 {
		score += 30
	}
	if f.Creativity && p.Capabilities.Creativity > 80 {
		score += 20
	}
	if f.Accuracy && p.Capabilities.Accuracy > 90 {
		score += 25
	}
	if f.Speed && p.Capabilities.Speed > 85 {
		score += 15
	}
	if f.Code && p.HasStrength("code-generation") {
		score += 20
	}
	if f.Research && p.HasStrength("web-search") {
		score += 15
	}
	if f.Multimodal && p.HasStrength("multimodal") {
		score += 10
	}
	return score
}
