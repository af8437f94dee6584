package core

import (
	"fmt"

	"github.com/shopspring/decimal"

	"schoolerp/internal/domain/auth"
)

// FilterEmployeeFields clears sealed personal fields unless the viewer is HR
// or the employee themselves.
func FilterEmployeeFields(emp *Employee, user auth.UserContext) {
	if auth.ScopeFor(user.RoleName) == auth.ScopeAll {
		return
	}
	if user.EmployeeID != "" && user.EmployeeID == emp.ID {
		emp.NationalID = maskTail(emp.NationalID)
		emp.BankAccount = maskTail(emp.BankAccount)
		return
	}
	emp.NationalID = ""
	emp.BankAccount = ""
	emp.DateOfBirth = nil
	emp.PersonalEmail = ""
	emp.AlternatePhone = ""
	emp.BankName = ""
}

// maskTail keeps the last four characters.
func maskTail(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return value
	}
	masked := make([]rune, len(runes))
	for i := range runes {
		if i < len(runes)-4 {
			masked[i] = '*'
		} else {
			masked[i] = runes[i]
		}
	}
	return string(masked)
}

func validateSalaryRange(minRaw, maxRaw string) error {
	minSalary, err := decimal.NewFromString(minRaw)
	if err != nil {
		return fmt.Errorf("%w: minSalary", ErrInvalidInput)
	}
	maxSalary, err := decimal.NewFromString(maxRaw)
	if err != nil {
		return fmt.Errorf("%w: maxSalary", ErrInvalidInput)
	}
	if minSalary.IsNegative() || maxSalary.LessThan(minSalary) {
		return fmt.Errorf("%w: salary range", ErrInvalidInput)
	}
	return nil
}
