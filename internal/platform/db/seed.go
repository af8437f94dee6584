package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/platform/config"
)

type leaveTypeSeed struct {
	code, name, category, gender string
	maxDays, carryDays, rate     string
	notice                       int
	carry, encash                bool
	method                       string
}

var defaultLeaveTypes = []leaveTypeSeed{
	{code: "AL", name: "Annual Leave", category: "paid", gender: "all", maxDays: "21", carryDays: "10", rate: "1.75", notice: 7, carry: true, encash: true, method: "monthly"},
	{code: "SL", name: "Sick Leave", category: "paid", gender: "all", maxDays: "14", carryDays: "0", rate: "14", method: "yearly"},
	{code: "ML", name: "Maternity Leave", category: "paid", gender: "female", maxDays: "90", carryDays: "0", rate: "90", notice: 30, method: "yearly"},
	{code: "PL", name: "Paternity Leave", category: "paid", gender: "male", maxDays: "14", carryDays: "0", rate: "14", notice: 7, method: "yearly"},
	{code: "CL", name: "Compassionate Leave", category: "paid", gender: "all", maxDays: "5", carryDays: "0", rate: "5", method: "yearly"},
	{code: "UL", name: "Unpaid Leave", category: "unpaid", gender: "all", maxDays: "30", carryDays: "0", rate: "0", notice: 14, method: "yearly"},
	{code: "STL", name: "Study Leave", category: "half_paid", gender: "all", maxDays: "30", carryDays: "0", rate: "0", notice: 30, method: "yearly"},
}

type payTypeSeed struct {
	code, name, category, gl string
	taxable, pensionable     bool
}

var defaultEarningTypes = []payTypeSeed{
	{code: "BASIC", name: "Basic Salary", category: "basic", gl: "5100", taxable: true, pensionable: true},
	{code: "HOUSE", name: "House Allowance", category: "allowance", gl: "5110", taxable: true},
	{code: "TRANS", name: "Transport Allowance", category: "allowance", gl: "5120", taxable: true},
	{code: "TEACH", name: "Teaching Allowance", category: "allowance", gl: "5130", taxable: true, pensionable: true},
	{code: "OT", name: "Overtime", category: "overtime", gl: "5140", taxable: true},
	{code: "BONUS", name: "Bonus", category: "bonus", gl: "5150", taxable: true},
	{code: "ARREARS", name: "Salary Arrears", category: "arrears", gl: "5160", taxable: true, pensionable: true},
	{code: "ENCASH", name: "Leave Encashment", category: "allowance", gl: "5170", taxable: true},
}

var defaultDeductionTypes = []payTypeSeed{
	{code: "PAYE", name: "Income Tax", category: "statutory", gl: "2210"},
	{code: "PENSION", name: "Pension Contribution", category: "statutory", gl: "2220"},
	{code: "HEALTH", name: "Health Insurance", category: "statutory", gl: "2230"},
	{code: "SACCO", name: "Staff Sacco", category: "voluntary", gl: "2310"},
	{code: "UNION", name: "Union Dues", category: "voluntary", gl: "2320"},
	{code: "LOAN", name: "Staff Loan", category: "loan", gl: "1410"},
	{code: "ADVANCE", name: "Salary Advance", category: "advance", gl: "1420"},
}

// Progressive monthly bands, rates as fractions.
var defaultTaxBands = []struct {
	lower string
	upper *string
	rate  string
}{
	{lower: "0", upper: ptr("24000"), rate: "0.10"},
	{lower: "24000", upper: ptr("32333"), rate: "0.25"},
	{lower: "32333", upper: ptr("500000"), rate: "0.30"},
	{lower: "500000", upper: ptr("800000"), rate: "0.325"},
	{lower: "800000", rate: "0.35"},
}

func ptr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Seed makes a fresh database usable: permissions, roles and their grants,
// the first administrator, and default leave, payroll and attendance
// catalogs. Every step is idempotent.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	steps := []struct {
		name string
		run  func(context.Context, pgx.Tx) error
	}{
		{"permissions", ensurePermissions},
		{"roles", ensureRoles},
		{"admin user", func(ctx context.Context, tx pgx.Tx) error {
			return ensureAdminUser(ctx, tx, cfg.SeedAdminUsername, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
		}},
		{"leave types", ensureLeaveTypes},
		{"pay types", ensurePayTypes},
		{"tax bands", ensureTaxBands},
		{"attendance defaults", ensureAttendanceDefaults},
	}
	for _, step := range steps {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return step.run(ctx, tx)
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", step.name, err)
		}
	}
	return nil
}

func ensurePermissions(ctx context.Context, tx pgx.Tx) error {
	for _, perm := range auth.DefaultPermissions {
		if _, err := tx.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm); err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, tx pgx.Tx) error {
	permIDs := map[string]string{}
	rows, err := tx.Query(ctx, "SELECT id, key FROM permissions")
	if err != nil {
		return err
	}
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return err
		}
		permIDs[key] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for roleName, perms := range auth.RolePermissions {
		var roleID string
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, roleName).Scan(&roleID)
		if err != nil {
			return err
		}
		for _, key := range perms {
			permID, ok := permIDs[key]
			if !ok {
				return errors.New("permission not found: " + key)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureAdminUser creates the first administrator once. The account must
// change its password on first login.
func ensureAdminUser(ctx context.Context, tx pgx.Tx, username, email, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" {
		return nil
	}
	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)", username, email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	if strings.TrimSpace(password) == "" {
		slog.Warn("SEED_ADMIN_PASSWORD not set; skipping admin user", "username", username)
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, user_type, role_id, must_change_password)
		SELECT $1, $2, $3, 'System', 'Administrator', $4, id, true FROM roles WHERE name = $5
	`, username, email, hash, auth.UserTypeAdmin, auth.RoleSystemAdmin)
	if err == nil {
		slog.Info("seeded admin user", "username", username)
	}
	return err
}

func ensureLeaveTypes(ctx context.Context, tx pgx.Tx) error {
	for _, lt := range defaultLeaveTypes {
		_, err := tx.Exec(ctx, `
			INSERT INTO leave_types (code, name, category, max_days_per_year, gender_specific, advance_notice_days,
				can_be_carried_forward, max_carryforward_days, can_be_encashed, accrual_rate, accrual_method)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (code) DO NOTHING
		`, lt.code, lt.name, lt.category, dec(lt.maxDays), lt.gender, lt.notice, lt.carry, dec(lt.carryDays), lt.encash, dec(lt.rate), lt.method)
		if err != nil {
			return fmt.Errorf("leave type %s: %w", lt.code, err)
		}
	}
	return nil
}

func ensurePayTypes(ctx context.Context, tx pgx.Tx) error {
	for i, et := range defaultEarningTypes {
		_, err := tx.Exec(ctx, `
			INSERT INTO earning_types (code, name, category, is_taxable, is_pensionable, gl_account_code, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (code) DO NOTHING
		`, et.code, et.name, et.category, et.taxable, et.pensionable, et.gl, i+1)
		if err != nil {
			return fmt.Errorf("earning type %s: %w", et.code, err)
		}
	}
	for i, dt := range defaultDeductionTypes {
		_, err := tx.Exec(ctx, `
			INSERT INTO deduction_types (code, name, category, is_mandatory, gl_account_code, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (code) DO NOTHING
		`, dt.code, dt.name, dt.category, dt.category == "statutory", dt.gl, i+1)
		if err != nil {
			return fmt.Errorf("deduction type %s: %w", dt.code, err)
		}
	}
	_, err := tx.Exec(ctx, "INSERT INTO payroll_settings (id) VALUES (true) ON CONFLICT (id) DO NOTHING")
	return err
}

func ensureTaxBands(ctx context.Context, tx pgx.Tx) error {
	var count int
	if err := tx.QueryRow(ctx, "SELECT count(*) FROM tax_bands").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, band := range defaultTaxBands {
		var upper *decimal.Decimal
		if band.upper != nil {
			v := dec(*band.upper)
			upper = &v
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO tax_bands (lower_bound, upper_bound, rate, effective_from)
			VALUES ($1, $2, $3, date_trunc('year', now())::date)
		`, dec(band.lower), upper, dec(band.rate))
		if err != nil {
			return err
		}
	}
	return nil
}

// ensureAttendanceDefaults adds a standard policy and a Monday to Friday
// 08:00-17:00 schedule when no policy exists yet.
func ensureAttendanceDefaults(ctx context.Context, tx pgx.Tx) error {
	var count int
	if err := tx.QueryRow(ctx, "SELECT count(*) FROM attendance_policies").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	var policyID string
	err := tx.QueryRow(ctx, `
		INSERT INTO attendance_policies (name, overtime_eligible, effective_from)
		VALUES ('Standard', true, date_trunc('year', now())::date)
		RETURNING id
	`).Scan(&policyID)
	if err != nil {
		return err
	}
	windows := map[int]map[string]int{}
	for day := 1; day <= 5; day++ {
		windows[day] = map[string]int{"start": 8 * 60, "end": 17 * 60}
	}
	encoded, err := json.Marshal(windows)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO work_schedules (name, schedule_type, attendance_policy_id, day_windows, break_minutes)
		VALUES ('Weekdays 08:00-17:00', 'fixed', $1, $2, 60)
	`, policyID, encoded)
	return err
}
