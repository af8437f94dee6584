package attendance

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusHalfDay = "half_day"
	StatusOnLeave = "on_leave"
	StatusHoliday = "holiday"
	StatusWeekend = "weekend"

	OvertimePending  = "pending"
	OvertimeApproved = "approved"
	OvertimeRejected = "rejected"

	MethodManual = "manual"
	MethodMobile = "mobile"
	MethodWeb    = "web"
)

var statuses = []string{StatusPresent, StatusAbsent, StatusLate, StatusHalfDay, StatusOnLeave, StatusHoliday, StatusWeekend}
