package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cryptoutil "schoolerp/internal/platform/crypto"
	"schoolerp/internal/platform/querier"
)

type Store struct {
	DB     *pgxpool.Pool
	Crypto *cryptoutil.Service
}

func NewStore(db *pgxpool.Pool, crypto *cryptoutil.Service) *Store {
	return &Store{DB: db, Crypto: crypto}
}

const employeeSelect = `
	SELECT e.id, e.employee_no, e.first_name, e.middle_name, e.last_name, e.date_of_birth, e.gender,
	       e.national_id, e.personal_email, e.official_email, e.phone, e.alternate_phone,
	       e.employee_category, e.payroll_type, e.employment_status, e.hire_date,
	       e.confirmation_date, e.termination_date, e.department_id, COALESCE(d.name, ''),
	       e.job_grade_id, e.job_title_id, COALESCE(jt.name, ''), e.supervisor_id,
	       e.bank_name, e.bank_account, e.created_at, e.updated_at
	FROM employees e
	LEFT JOIN departments d ON d.id = e.department_id
	LEFT JOIN job_titles jt ON jt.id = e.job_title_id`

func (s *Store) scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.EmployeeNo, &emp.FirstName, &emp.MiddleName, &emp.LastName, &emp.DateOfBirth, &emp.Gender,
		&emp.NationalID, &emp.PersonalEmail, &emp.OfficialEmail, &emp.Phone, &emp.AlternatePhone,
		&emp.Category, &emp.PayrollType, &emp.Status, &emp.HireDate,
		&emp.ConfirmationDate, &emp.TerminationDate, &emp.DepartmentID, &emp.DepartmentName,
		&emp.JobGradeID, &emp.JobTitleID, &emp.JobTitleName, &emp.SupervisorID,
		&emp.BankName, &emp.BankAccount, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, err
	}
	emp.NationalID = s.open(emp.NationalID)
	emp.BankAccount = s.open(emp.BankAccount)
	return emp, nil
}

// open falls back to the stored text for rows written before a key was set.
func (s *Store) open(value string) string {
	plain, err := s.Crypto.OpenString(value)
	if err != nil {
		return value
	}
	return plain
}

func (s *Store) GetEmployee(ctx context.Context, id string) (Employee, error) {
	return s.scanEmployee(s.DB.QueryRow(ctx, employeeSelect+" WHERE e.id = $1", id))
}

func (s *Store) ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, int, error) {
	where, args := employeeWhere(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees e"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := employeeSelect + where + fmt.Sprintf(" ORDER BY e.last_name, e.first_name LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Employee, error) {
		return s.scanEmployee(row)
	})
	return out, total, err
}

func employeeWhere(filter EmployeeFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	add := func(clause string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	add("e.department_id = $%d", filter.DepartmentID)
	add("e.employee_category = $%d", filter.Category)
	add("e.employment_status = $%d", filter.Status)
	if filter.Query != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Query)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(e.first_name ILIKE $%d OR e.last_name ILIKE $%d OR e.employee_no ILIKE $%d OR e.official_email ILIKE $%d)", n, n, n, n))
	}
	switch {
	case filter.OnlyID != "" && filter.SupervisorID != "":
		args = append(args, filter.OnlyID, filter.SupervisorID)
		clauses = append(clauses, fmt.Sprintf("(e.id = $%d OR e.supervisor_id = $%d)", len(args)-1, len(args)))
	case filter.OnlyID != "":
		add("e.id = $%d", filter.OnlyID)
	case filter.SupervisorID != "":
		add("e.supervisor_id = $%d", filter.SupervisorID)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) sealSensitive(in EmployeeInput) (string, string, error) {
	national, err := s.Crypto.SealString(in.NationalID)
	if err != nil {
		return "", "", err
	}
	bank, err := s.Crypto.SealString(in.BankAccount)
	if err != nil {
		return "", "", err
	}
	return national, bank, nil
}

func (s *Store) CreateEmployee(ctx context.Context, in EmployeeInput, dates employeeDates) (string, error) {
	national, bank, err := s.sealSensitive(in)
	if err != nil {
		return "", err
	}
	var id string
	err = s.DB.QueryRow(ctx, `
		INSERT INTO employees (employee_no, first_name, middle_name, last_name, date_of_birth, gender,
			national_id, personal_email, official_email, phone, alternate_phone, employee_category,
			payroll_type, employment_status, hire_date, confirmation_date, termination_date,
			department_id, job_grade_id, job_title_id, supervisor_id, bank_name, bank_account)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		RETURNING id
	`, in.EmployeeNo, in.FirstName, in.MiddleName, in.LastName, dates.birth, in.Gender,
		national, in.PersonalEmail, in.OfficialEmail, in.Phone, in.AlternatePhone, in.Category,
		in.PayrollType, in.Status, dates.hire, dates.confirmation, dates.termination,
		in.DepartmentID, in.JobGradeID, in.JobTitleID, in.SupervisorID, in.BankName, bank,
	).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

func (s *Store) UpdateEmployee(ctx context.Context, id string, in EmployeeInput, dates employeeDates) error {
	national, bank, err := s.sealSensitive(in)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `
		UPDATE employees
		SET employee_no = $1, first_name = $2, middle_name = $3, last_name = $4, date_of_birth = $5,
		    gender = $6, national_id = $7, personal_email = $8, official_email = $9, phone = $10,
		    alternate_phone = $11, employee_category = $12, payroll_type = $13, employment_status = $14,
		    hire_date = $15, confirmation_date = $16, termination_date = $17, department_id = $18,
		    job_grade_id = $19, job_title_id = $20, supervisor_id = $21, bank_name = $22,
		    bank_account = $23, updated_at = now()
		WHERE id = $24
	`, in.EmployeeNo, in.FirstName, in.MiddleName, in.LastName, dates.birth,
		in.Gender, national, in.PersonalEmail, in.OfficialEmail, in.Phone,
		in.AlternatePhone, in.Category, in.PayrollType, in.Status,
		dates.hire, dates.confirmation, dates.termination, in.DepartmentID,
		in.JobGradeID, in.JobTitleID, in.SupervisorID, in.BankName, bank, id)
	if querier.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM employees WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IsSupervisorOf(ctx context.Context, supervisorID, employeeID string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1 AND supervisor_id = $2)", employeeID, supervisorID).Scan(&ok)
	return ok, err
}

func (s *Store) ListAddresses(ctx context.Context, employeeID string) ([]Address, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, address_type, country, county, sub_county, village, street, postal_code, is_primary
		FROM employee_addresses
		WHERE employee_id = $1
		ORDER BY is_primary DESC, created_at
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Address])
}

func (s *Store) ReplaceAddresses(ctx context.Context, employeeID string, addresses []Address) error {
	return querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM employee_addresses WHERE employee_id = $1", employeeID); err != nil {
			return err
		}
		for _, a := range addresses {
			if _, err := tx.Exec(ctx, `
				INSERT INTO employee_addresses (employee_id, address_type, country, county, sub_county, village, street, postal_code, is_primary)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, employeeID, a.AddressType, a.Country, a.County, a.SubCounty, a.Village, a.Street, a.PostalCode, a.IsPrimary); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListEmergencyContacts(ctx context.Context, employeeID string) ([]EmergencyContact, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, full_name, relationship, phone, email, is_primary
		FROM emergency_contacts
		WHERE employee_id = $1
		ORDER BY is_primary DESC, created_at
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[EmergencyContact])
}

func (s *Store) ReplaceEmergencyContacts(ctx context.Context, employeeID string, contacts []EmergencyContact) error {
	return querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM emergency_contacts WHERE employee_id = $1", employeeID); err != nil {
			return err
		}
		for _, c := range contacts {
			if _, err := tx.Exec(ctx, `
				INSERT INTO emergency_contacts (employee_id, full_name, relationship, phone, email, is_primary)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, employeeID, c.FullName, c.Relationship, c.Phone, c.Email, c.IsPrimary); err != nil {
				return err
			}
		}
		return nil
	})
}

const departmentSelect = `
	SELECT d.id, d.faculty_id, d.parent_id, d.code, d.name, d.head_employee_id, d.is_active,
	       (SELECT COUNT(1) FROM employees e WHERE e.department_id = d.id)::int, d.created_at
	FROM departments d`

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, departmentSelect+" ORDER BY d.name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Department])
}

func (s *Store) GetDepartment(ctx context.Context, id string) (Department, error) {
	rows, err := s.DB.Query(ctx, departmentSelect+" WHERE d.id = $1", id)
	if err != nil {
		return Department{}, err
	}
	dep, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Department])
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrNotFound
	}
	return dep, err
}

func (s *Store) CreateDepartment(ctx context.Context, in DepartmentInput) (string, error) {
	active := in.IsActive == nil || *in.IsActive
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO departments (faculty_id, parent_id, code, name, head_employee_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, in.FacultyID, in.ParentID, in.Code, in.Name, in.HeadEmployeeID, active).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

func (s *Store) UpdateDepartment(ctx context.Context, id string, in DepartmentInput) error {
	active := in.IsActive == nil || *in.IsActive
	tag, err := s.DB.Exec(ctx, `
		UPDATE departments
		SET faculty_id = $1, parent_id = $2, code = $3, name = $4, head_employee_id = $5, is_active = $6, updated_at = now()
		WHERE id = $7
	`, in.FacultyID, in.ParentID, in.Code, in.Name, in.HeadEmployeeID, active, id)
	if querier.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	var inUse bool
	if err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM employees WHERE department_id = $1)", id).Scan(&inUse); err != nil {
		return err
	}
	if inUse {
		return ErrDepartmentInUse
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM departments WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListCampuses(ctx context.Context) ([]Campus, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, code, name, created_at FROM campuses ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Campus])
}

func (s *Store) CreateCampus(ctx context.Context, in OrgUnitInput) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "INSERT INTO campuses (code, name) VALUES ($1, $2) RETURNING id", in.Code, in.Name).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

func (s *Store) ListFaculties(ctx context.Context) ([]Faculty, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, campus_id, code, name, created_at FROM faculties ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Faculty])
}

func (s *Store) CreateFaculty(ctx context.Context, in OrgUnitInput) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "INSERT INTO faculties (campus_id, code, name) VALUES ($1, $2, $3) RETURNING id", in.ParentID, in.Code, in.Name).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

const jobGradeSelect = "SELECT id, code, name, level, min_salary::text, max_salary::text, created_at FROM job_grades"

func (s *Store) ListJobGrades(ctx context.Context) ([]JobGrade, error) {
	rows, err := s.DB.Query(ctx, jobGradeSelect+" ORDER BY level, code")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[JobGrade])
}

func (s *Store) GetJobGrade(ctx context.Context, id string) (JobGrade, error) {
	rows, err := s.DB.Query(ctx, jobGradeSelect+" WHERE id = $1", id)
	if err != nil {
		return JobGrade{}, err
	}
	grade, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[JobGrade])
	if errors.Is(err, pgx.ErrNoRows) {
		return JobGrade{}, ErrNotFound
	}
	return grade, err
}

func (s *Store) UpsertJobGrade(ctx context.Context, id string, in JobGradeInput) (string, error) {
	if id == "" {
		err := s.DB.QueryRow(ctx, `
			INSERT INTO job_grades (code, name, level, min_salary, max_salary)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric)
			RETURNING id
		`, in.Code, in.Name, in.Level, in.MinSalary, in.MaxSalary).Scan(&id)
		if querier.IsUniqueViolation(err) {
			return "", ErrConflict
		}
		return id, err
	}
	tag, err := s.DB.Exec(ctx, `
		UPDATE job_grades SET code = $1, name = $2, level = $3, min_salary = $4::numeric, max_salary = $5::numeric
		WHERE id = $6
	`, in.Code, in.Name, in.Level, in.MinSalary, in.MaxSalary, id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *Store) ListJobTitles(ctx context.Context) ([]JobTitle, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, code, name, job_grade_id, created_at FROM job_titles ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[JobTitle])
}

func (s *Store) GetJobTitle(ctx context.Context, id string) (JobTitle, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, code, name, job_grade_id, created_at FROM job_titles WHERE id = $1", id)
	if err != nil {
		return JobTitle{}, err
	}
	title, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[JobTitle])
	if errors.Is(err, pgx.ErrNoRows) {
		return JobTitle{}, ErrNotFound
	}
	return title, err
}

func (s *Store) CreateJobTitle(ctx context.Context, in JobTitleInput) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "INSERT INTO job_titles (code, name, job_grade_id) VALUES ($1, $2, $3) RETURNING id", in.Code, in.Name, in.JobGradeID).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{ByCategory: map[string]int{}, ByStatus: map[string]int{}}
	rows, err := s.DB.Query(ctx, `
		SELECT employee_category, employment_status, COUNT(1)::int
		FROM employees
		GROUP BY employee_category, employment_status
	`)
	if err != nil {
		return stats, err
	}
	type bucket struct {
		Category string
		Status   string
		Count    int
	}
	buckets, err := pgx.CollectRows(rows, pgx.RowToStructByPos[bucket])
	if err != nil {
		return stats, err
	}
	for _, b := range buckets {
		stats.Total += b.Count
		stats.ByCategory[b.Category] += b.Count
		stats.ByStatus[b.Status] += b.Count
		if b.Status == StatusActive {
			stats.Active += b.Count
		}
	}

	rows, err = s.DB.Query(ctx, `
		SELECT d.id, d.name, COUNT(e.id)::int
		FROM departments d
		JOIN employees e ON e.department_id = d.id
		GROUP BY d.id, d.name
		ORDER BY COUNT(e.id) DESC, d.name
		LIMIT 10
	`)
	if err != nil {
		return stats, err
	}
	stats.TopDepartments, err = pgx.CollectRows(rows, pgx.RowToStructByPos[DepartmentCount])
	return stats, err
}
