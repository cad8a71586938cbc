package access

import (
	"strings"
	"testing"
)

func TestPolicyEvaluate(t *testing.T) {
	p := Policy{}

	cases := []struct {
		class      UserClass
		inside     int
		authorized bool
	}{
		{ClassAssistant, 0, true},
		{ClassAssistant, 5, true},
		{ClassStudent, 0, false},
		{ClassStudent, 1, false},
		{ClassStudent, 2, true},
		{ClassStudent, 7, true},
		{ClassUnknown, 99, false},
		{UserClass("GUEST"), 99, false},
	}
	for _, tc := range cases {
		decision := p.Evaluate(tc.class, tc.inside)
		if decision.Authorized != tc.authorized {
			t.Fatalf("evaluate(%s, %d): expected authorized=%v, got %v",
				tc.class, tc.inside, tc.authorized, decision.Authorized)
		}
	}
}

func TestPolicyStudentMessages(t *testing.T) {
	p := Policy{}

	below := p.Evaluate(ClassStudent, 1)
	if below.Message != "Toca el timbre" {
		t.Fatalf("expected ring-the-bell hint, got %q", below.Message)
	}
	above := p.Evaluate(ClassStudent, 3)
	if !strings.Contains(above.Message, "3 ayudantes dentro") {
		t.Fatalf("expected count in message, got %q", above.Message)
	}
}

func TestPolicyUnknownClassMessage(t *testing.T) {
	decision := Policy{}.Evaluate(ClassUnknown, 10)
	if decision.Message != "Tipo de usuario no válido" {
		t.Fatalf("unexpected message %q", decision.Message)
	}
}

func TestPolicyCustomThreshold(t *testing.T) {
	p := Policy{Threshold: 1}
	if !p.Evaluate(ClassStudent, 1).Authorized {
		t.Fatalf("threshold 1 should authorize one assistant")
	}
	if (Policy{}).threshold() != DefaultAssistantThreshold {
		t.Fatalf("zero threshold must default to %d", DefaultAssistantThreshold)
	}
}
