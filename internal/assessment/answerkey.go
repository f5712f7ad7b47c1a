package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AnswerKey 选择题正确答案的原始形态。
// 题库题目存数字下标（Index），AI 生成的题目给字母或选项原文（Text）。
type AnswerKey struct {
	Index *int
	Text  string
}

func IndexKey(i int) AnswerKey { return AnswerKey{Index: &i} }

func TextKey(s string) AnswerKey { return AnswerKey{Text: s} }

func (k AnswerKey) IsZero() bool {
	return k.Index == nil && strings.TrimSpace(k.Text) == ""
}

func (k AnswerKey) String() string {
	if k.Index != nil {
		return strconv.Itoa(*k.Index)
	}
	return k.Text
}

func (k AnswerKey) MarshalJSON() ([]byte, error) {
	if k.Index != nil {
		return json.Marshal(*k.Index)
	}
	return json.Marshal(k.Text)
}

func (k *AnswerKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = AnswerKey{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = AnswerKey{Text: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAnswerKey, string(data))
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAnswerKey, n.String())
	}
	*k = AnswerKey{Index: &i}
	return nil
}

// 匹配 "C"、"c"、"(C)"、"C)"、"C."、"Option C"、"选项C"
var letterKeyPattern = regexp.MustCompile(`^(?i)(?:option\s*|选项\s*)?\(?([a-z])\)?[.):：]?$`)

// NormalizeAnswerKey 把任意形态的答案统一成从 0 开始的选项下标。
// 判定顺序：数字下标 > 与选项完全相同的原文 > 字母 > 忽略大小写的原文 > 文本形式的数字下标。
func NormalizeAnswerKey(key AnswerKey, options []string) (int, error) {
	n := len(options)
	if key.Index != nil {
		if *key.Index < 0 || *key.Index >= n {
			return 0, fmt.Errorf("%w: index %d with %d options", ErrInvalidAnswerKey, *key.Index, n)
		}
		return *key.Index, nil
	}

	text := strings.TrimSpace(key.Text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAnswerKey)
	}

	for i, opt := range options {
		if strings.TrimSpace(opt) == text {
			return i, nil
		}
	}

	if m := letterKeyPattern.FindStringSubmatch(text); m != nil {
		idx := int(strings.ToUpper(m[1])[0] - 'A')
		if idx < n {
			return idx, nil
		}
	}

	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), text) {
			return i, nil
		}
	}

	if i, err := strconv.Atoi(text); err == nil && i >= 0 && i < n {
		return i, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidAnswerKey, text)
}
