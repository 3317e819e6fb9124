package intent

import (
	"strings"
	"testing"
	"time"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
)

func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return NewAnalyzer(config.DefaultConfig().Recall)
}

func TestAnalyzeGateOrder(t *testing.T) {
	a := testAnalyzer(t)

	tests := []struct {
		name      string
		prompt    string
		hasLinked bool
		should    bool
		reason    string
	}{
		{"skip phrase", "不要查笔记，直接回答这个问题就行", false, false, "explicit_skip"},
		{"skip beats force", "no recall, but search my notes for rust", false, false, "explicit_skip"},
		{"force phrase", "search my notes for Rust ownership rules", false, true, "explicit_force"},
		{"linked doc bypasses length", "看这个", true, true, "linked_doc"},
		{"too short", "hi", false, false, "too_short"},
		{"too short cjk", "你好吗啊哦", false, false, "too_short"},
		{"greeting", "good morning!", false, false, "greeting"},
		{"greeting cjk", "你好你好你好", false, false, "greeting"},
		{"command", "/help please show commands", false, false, "intent_command"},
		{"default", "怎么部署 Kubernetes 集群比较稳妥", false, true, "default"},
		{"review passes gate", "回顾一下上周的部署问题", false, true, "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.prompt, tt.hasLinked)
			if got.Gate.Should != tt.should {
				t.Errorf("Should = %v, want %v", got.Gate.Should, tt.should)
			}
			if got.Gate.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Gate.Reason, tt.reason)
			}
		})
	}
}

func TestAnalyzeForceStripsPhrase(t *testing.T) {
	a := testAnalyzer(t)

	got := a.Analyze("search my notes for Rust ownership rules", false)
	if got.Query != "Rust ownership rules" {
		t.Fatalf("Query = %q, want %q", got.Query, "Rust ownership rules")
	}
	joined := strings.Join(got.Intent.Keywords, " ")
	for _, want := range []string{"rust", "ownership", "rules"} {
		if !strings.Contains(joined, want) {
			t.Errorf("keywords %v missing %q", got.Intent.Keywords, want)
		}
	}
	if strings.Contains(joined, "notes") {
		t.Errorf("keywords %v leaked the force phrase", got.Intent.Keywords)
	}
}

func TestAnalyzeForceStripsChineseConnector(t *testing.T) {
	a := testAnalyzer(t)

	got := a.Analyze("查一下我的笔记，关于简历的情况", false)
	if got.Gate.Reason != "explicit_force" {
		t.Fatalf("Reason = %q, want explicit_force", got.Gate.Reason)
	}
	joined := strings.Join(got.Intent.Keywords, " ")
	if !strings.Contains(joined, "简历") {
		t.Errorf("keywords %v missing 简历", got.Intent.Keywords)
	}
	if strings.Contains(joined, "笔记") {
		t.Errorf("keywords %v leaked the force phrase", got.Intent.Keywords)
	}
}

func TestAnalyzeEmptyForceQuery(t *testing.T) {
	a := testAnalyzer(t)

	got := a.Analyze("search my notes", false)
	if !got.Gate.Should || got.Gate.Reason != "explicit_force" {
		t.Fatalf("gate = %+v, want forced", got.Gate)
	}
	if got.Query != "" {
		t.Errorf("Query = %q, want empty", got.Query)
	}
	if len(got.Intent.Keywords) != 0 {
		t.Errorf("Keywords = %v, want none", got.Intent.Keywords)
	}
}

func TestIntentType(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"hello", TypeChat},
		{"你好！", TypeChat},
		{"/sync --full", TypeCommand},
		{"回顾一下上周的工作", TypeReview},
		{"write a summary of the incident", TypeReview},
		{"帮我查找简历相关的内容", TypeSearch},
		{"find the deployment checklist", TypeSearch},
		{"how to configure nginx upstream", TypeQuery},
	}
	for _, tt := range tests {
		if got := intentType(tt.prompt); got != tt.want {
			t.Errorf("intentType(%q) = %q, want %q", tt.prompt, got, tt.want)
		}
	}
}

func TestIsGreeting(t *testing.T) {
	greetings := []string{"Hi", "hello!", "hey there", "good morning!", "你好", "您好！", "thanks"}
	for _, g := range greetings {
		if !isGreeting(g) {
			t.Errorf("isGreeting(%q) = false, want true", g)
		}
	}
	notGreetings := []string{"hello world program in go", "what is kubernetes", "早上好的会议记录在哪"}
	for _, g := range notGreetings {
		if isGreeting(g) {
			t.Errorf("isGreeting(%q) = true, want false", g)
		}
	}
}

func TestDetectTimeRange(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		text string
		days int
	}{
		{"上周的会议记录", 7},
		{"last week meeting notes", 7},
		{"今天做了什么", 1},
		{"最近在忙什么项目", 30},
		{"今天的总结和最近的计划", 1},
		{"show me yesterday's log", 2},
	}
	for _, tt := range tests {
		got := DetectTimeRange(tt.text, now)
		if got == nil {
			t.Errorf("DetectTimeRange(%q) = nil, want %d days", tt.text, tt.days)
			continue
		}
		if got.Days != tt.days {
			t.Errorf("DetectTimeRange(%q).Days = %d, want %d", tt.text, got.Days, tt.days)
		}
		if want := now.AddDate(0, 0, -tt.days); !got.Since.Equal(want) {
			t.Errorf("DetectTimeRange(%q).Since = %v, want %v", tt.text, got.Since, want)
		}
	}

	if got := DetectTimeRange("nothing temporal here", now); got != nil {
		t.Errorf("DetectTimeRange = %+v, want nil", got)
	}
}
