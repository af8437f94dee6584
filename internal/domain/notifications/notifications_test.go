package notifications

import (
	"context"
	"testing"
)

func TestNilServiceIsNoop(t *testing.T) {
	var s *Service
	s.Notify(context.Background(), "u1", TypeLeaveApproved, "Leave approved", "Your leave was approved")
	s.NotifyEmployee(context.Background(), "e1", TypeLeaveApproved, "Leave approved", "Your leave was approved")
}

func TestNotifySkipsMissingRecipient(t *testing.T) {
	s := &Service{}
	s.Notify(context.Background(), "", TypePayslipPublished, "Payslip", "ready")
	s.NotifyEmployee(context.Background(), "", TypePayslipPublished, "Payslip", "ready")
}
