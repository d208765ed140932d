package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm connection: %v", err)
		}

		if clearData {
			for _, table := range []string{"payables", "settlements", "stops", "legs", "loads", "payees", "pay_plans", "operators", "organizations"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		cost := cfg.Security.BCryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), cost)

		var orgID int64
		row := db.Raw("SELECT id FROM organizations WHERE name = ?", "FreightOps Demo Carrier").Row()
		if err := row.Scan(&orgID); err != nil {
			if err := db.Raw(
				"INSERT INTO organizations (name, default_timezone) VALUES (?, ?) RETURNING id",
				"FreightOps Demo Carrier", "America/Chicago").Row().Scan(&orgID); err != nil {
				log.Fatalf("failed to insert organization: %v", err)
			}
			fmt.Println("Seeded organization:", orgID)
		}

		operators := []struct {
			Email       string
			Name        string
			Permissions string
		}{
			{"dispatcher@freightops.test", "Demo Dispatcher", "settlements:generate"},
			{"controller@freightops.test", "Demo Controller", "settlements:generate,settlements:approve"},
			{"admin@freightops.test", "Demo Admin", "admin"},
		}
		for _, op := range operators {
			var exists int
			row := db.Raw("SELECT 1 FROM operators WHERE email = ?", op.Email).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec(
				"INSERT INTO operators (organization_id, email, name, password_hash, permissions, is_active, created_at) VALUES (?, ?, ?, ?, ?, true, now())",
				orgID, op.Email, op.Name, string(hash), op.Permissions).Error; err != nil {
				log.Fatalf("failed to insert operator %s: %v", op.Email, err)
			}
			fmt.Println("Seeded operator:", op.Email)
		}

		var weeklyPlanID int64
		row = db.Raw("SELECT id FROM pay_plans WHERE organization_id = ? AND name = ?", orgID, "Company Drivers Weekly").Row()
		if err := row.Scan(&weeklyPlanID); err != nil {
			if err := db.Raw(
				`INSERT INTO pay_plans (organization_id, name, frequency, anchor_day_of_week, cutoff_time, payment_lag_days, payable_trigger, include_standalone_adjustments, is_active, created_at, updated_at)
				 VALUES (?, ?, 'WEEKLY', 1, '23:59', 5, 'DELIVERY_DATE', true, true, now(), now()) RETURNING id`,
				orgID, "Company Drivers Weekly").Row().Scan(&weeklyPlanID); err != nil {
				log.Fatalf("failed to insert weekly plan: %v", err)
			}
			fmt.Println("Seeded weekly pay plan:", weeklyPlanID)
		}

		var biweeklyPlanID int64
		row = db.Raw("SELECT id FROM pay_plans WHERE organization_id = ? AND name = ?", orgID, "Owner Operators Biweekly").Row()
		if err := row.Scan(&biweeklyPlanID); err != nil {
			if err := db.Raw(
				`INSERT INTO pay_plans (organization_id, name, frequency, anchor_day_of_week, cutoff_time, payment_lag_days, payable_trigger, include_standalone_adjustments, is_active, created_at, updated_at)
				 VALUES (?, ?, 'BIWEEKLY', 5, '17:00', 3, 'COMPLETION_DATE', true, true, now(), now()) RETURNING id`,
				orgID, "Owner Operators Biweekly").Row().Scan(&biweeklyPlanID); err != nil {
				log.Fatalf("failed to insert biweekly plan: %v", err)
			}
			fmt.Println("Seeded biweekly pay plan:", biweeklyPlanID)
		}

		payees := []struct {
			Name   string
			Type   string
			PlanID int64
		}{
			{"Dale Hutchins", "DRIVER", weeklyPlanID},
			{"Marisol Vega", "DRIVER", weeklyPlanID},
			{"J&T Haulage LLC", "CARRIER", biweeklyPlanID},
		}
		for _, p := range payees {
			var exists int
			row := db.Raw("SELECT 1 FROM payees WHERE organization_id = ? AND display_name = ?", orgID, p.Name).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}
			var payeeID int64
			if err := db.Raw(
				"INSERT INTO payees (organization_id, payee_type, display_name, pay_plan_id, is_active, created_at) VALUES (?, ?, ?, ?, true, now()) RETURNING id",
				orgID, p.Type, p.Name, p.PlanID).Row().Scan(&payeeID); err != nil {
				log.Fatalf("failed to insert payee %s: %v", p.Name, err)
			}
			if err := seedFreightFor(db, orgID, payeeID, p.Name); err != nil {
				log.Fatalf("failed to seed freight for %s: %v", p.Name, err)
			}
			fmt.Println("Seeded payee:", p.Name)
		}

		fmt.Println("Seeding complete")
	},
}

// seedFreightFor creates one delivered load with a leg, two stops, and a
// mileage payable for the payee, plus one standalone manual adjustment.
func seedFreightFor(db *gorm.DB, orgID, payeeID int64, name string) error {
	ref := fmt.Sprintf("LD-%d", payeeID)

	var loadID int64
	if err := db.Raw(
		"INSERT INTO loads (organization_id, reference_number, effective_miles, is_held, has_signed_pod, created_at) VALUES (?, ?, 412.5, false, true, now()) RETURNING id",
		orgID, ref).Row().Scan(&loadID); err != nil {
		return err
	}

	if err := db.Exec(
		`INSERT INTO stops (load_id, stop_type, sequence, checked_out_at, window_begins_at, window_ends_at)
		 VALUES (?, 'PICKUP', 1, now() - interval '2 days', now() - interval '2 days', now() - interval '2 days'),
		        (?, 'DELIVERY', 2, now() - interval '1 day', now() - interval '1 day', now() - interval '1 day')`,
		loadID, loadID).Error; err != nil {
		return err
	}

	var legID int64
	if err := db.Raw(
		"INSERT INTO legs (load_id, completed_at, destination_stop_id) VALUES (?, now() - interval '1 day', (SELECT id FROM stops WHERE load_id = ? AND stop_type = 'DELIVERY' LIMIT 1)) RETURNING id",
		loadID, loadID).Row().Scan(&legID); err != nil {
		return err
	}

	if err := db.Exec(
		`INSERT INTO payables (organization_id, payee_id, load_id, leg_id, description, quantity, rate, total_amount, source_type, is_locked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 412.5, 0.62, 255.75, 'SYSTEM', false, now(), now())`,
		orgID, payeeID, loadID, legID, "Linehaul "+ref).Error; err != nil {
		return err
	}

	return db.Exec(
		`INSERT INTO payables (organization_id, payee_id, description, quantity, rate, total_amount, source_type, is_locked, created_at, updated_at)
		 VALUES (?, ?, ?, 0, 0, 50.00, 'MANUAL', true, now(), now())`,
		orgID, payeeID, "Safety bonus for "+name).Error
}
