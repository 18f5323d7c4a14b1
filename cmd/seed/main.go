package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var conditions = []string{
	"No known conditions",
	"Seasonal allergies",
	"Asthma",
	"Hypertension",
	"Type 2 diabetes",
	"Migraine",
	"Hypothyroidism",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	doctors := flag.Int("doctors", 20, "number of doctors to register")
	patients := flag.Int("patients", 200, "number of patients to register")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	// Login is never called here, so no token manager is needed.
	svc := accounts.NewService(accounts.NewPgRepository(pool), nil, zap.NewNop())

	if err := seedDoctors(context.Background(), svc, *doctors, password); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), svc, *patients, password); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, svc *accounts.Service, count int, password string) error {
	log.Printf("seeding %d doctors", count)

	created := 0
	for i := range count {
		_, err := svc.Register(ctx, accounts.Registration{
			Username: fmt.Sprintf("doctor_%03d", i),
			Email:    gofakeit.Email(),
			Password: password,
			Role:     auth.RoleDoctor,
			Doctor: &accounts.DoctorProfile{
				Specialty:       specialties[gofakeit.Number(0, len(specialties)-1)],
				ExperienceYears: gofakeit.Number(1, 35),
			},
		})
		if errors.Is(err, accounts.ErrUsernameTaken) {
			continue
		}
		if err != nil {
			return err
		}
		created++
	}

	log.Printf("doctors seeded: %d new", created)
	return nil
}

func seedPatients(ctx context.Context, svc *accounts.Service, count int, password string) error {
	log.Printf("seeding %d patients", count)

	created := 0
	for i := range count {
		dob := gofakeit.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC))
		history := gofakeit.RandomString(conditions)

		_, err := svc.Register(ctx, accounts.Registration{
			Username: fmt.Sprintf("patient_%04d", i),
			Email:    gofakeit.Email(),
			Password: password,
			Role:     auth.RolePatient,
			Patient: &accounts.PatientProfile{
				DateOfBirth:    &dob,
				MedicalHistory: &history,
			},
		})
		if errors.Is(err, accounts.ErrUsernameTaken) {
			continue
		}
		if err != nil {
			return err
		}
		created++

		if (i+1)%50 == 0 {
			log.Printf("patients seeded: %d/%d", i+1, count)
		}
	}

	log.Printf("patients seeded: %d new", created)
	return nil
}
