package usecase

import (
	"strings"
	"testing"
)

func TestEvaluateExpression(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"2 + 2 * 3", "8"},
		{"(2 + 2) * 3", "12"},
		{"10 / 4", "2.5"},
		{"10 % 3", "1"},
		{"-5 + 3", "-2"},
		{"sqrt(16)", "4"},
		{"pow(2, 8)", "256"},
		{"abs(-3.5)", "3.5"},
		{"floor(2.9)", "2"},
		{"ceil(2.1)", "3"},
		{"round(2.5)", "3"},
		{"Math.sqrt(81)", "9"},
	}
	for _, tc := range cases {
		got, err := evaluateExpression(tc.expr)
		if err != nil {
			t.Errorf("evaluateExpression(%q): %v", tc.expr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("evaluateExpression(%q) = %q, want %q", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluateExpressionRejectsNonMath(t *testing.T) {
	bad := []string{
		"alert(1)",
		"process.exit()",
		"2; drop table",
		"x + 1",
		"__proto__",
		"",
	}
	for _, expr := range bad {
		if _, err := evaluateExpression(expr); err == nil {
			t.Errorf("evaluateExpression(%q) should fail", expr)
		}
	}
}

func TestEvaluateExpressionDivisionByZero(t *testing.T) {
	for _, expr := range []string{"1/0", "5 % 0"} {
		_, err := evaluateExpression(expr)
		if err == nil || !strings.Contains(err.Error(), "zero") {
			t.Errorf("evaluateExpression(%q): expected zero-division error, got %v", expr, err)
		}
	}
}

func TestEvaluateExpressionUnbalancedParens(t *testing.T) {
	for _, expr := range []string{"(2+2", "2+2)", "pow(2", "sqrt 4"} {
		if _, err := evaluateExpression(expr); err == nil {
			t.Errorf("evaluateExpression(%q) should fail", expr)
		}
	}
}
