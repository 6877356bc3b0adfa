package services

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMathProblem(t *testing.T) {
	svc := NewCaptchaService()

	for i := 0; i < 100; i++ {
		question, answer := svc.GenerateMathProblem()

		assert.GreaterOrEqual(t, answer, 0, "减法结果不应为负: %s", question)
		assert.LessOrEqual(t, answer, 18)

		// 题面可以自行算出答案
		var a, b int
		var op string
		_, err := fmt.Sscanf(question, "%d %s %d", &a, &op, &b)
		require.NoError(t, err, "题面格式异常: %s", question)

		switch op {
		case "+":
			assert.Equal(t, a+b, answer)
		case "-":
			assert.Equal(t, a-b, answer)
		default:
			t.Fatalf("未知运算符: %s", question)
		}
	}
}

func TestMathProblemFormat(t *testing.T) {
	svc := NewCaptchaService()

	question, answer := svc.GenerateMathProblem()
	parts := strings.Fields(question)
	require.Len(t, parts, 3)

	// 答案可被 Atoi 往返（处理用户表单输入的路径）
	parsed, err := strconv.Atoi(strconv.Itoa(answer))
	require.NoError(t, err)
	assert.Equal(t, answer, parsed)
}
