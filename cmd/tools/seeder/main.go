package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	userID := seedDemoUser(db)
	seedReceipts(db, userID)

	log.Println("Seeding completed successfully!")
}

func seedDemoUser(db *sql.DB) string {
	fmt.Println("Seeding demo user...")

	hash, err := argon2id.CreateHash("demo-password-123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	var userID string
	err = db.QueryRow(`
		INSERT INTO users (email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id::text;
	`, "demo@receipts.local", hash, "Борис", "Джонсонюк").Scan(&userID)
	if err != nil {
		log.Fatalf("Failed to seed demo user: %v", err)
	}
	log.Printf("Demo user ID: %s", userID)
	return userID
}

type seedItem struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
	Total    string `json:"total"`
}

func seedReceipts(db *sql.DB, userID string) {
	fmt.Println("Seeding receipts...")

	receipts := []struct {
		Items         []seedItem
		PaymentKind   string
		PaymentAmount string
		TotalAmount   string
		RestAmount    string
	}{
		{
			Items: []seedItem{
				{Name: "Хліб житній", Price: "18.50", Quantity: 2, Total: "37.00"},
				{Name: "Молоко 2.5%", Price: "32.40", Quantity: 1, Total: "32.40"},
			},
			PaymentKind:   "cash",
			PaymentAmount: "100.00",
			TotalAmount:   "69.40",
			RestAmount:    "30.60",
		},
		{
			Items: []seedItem{
				{Name: "Кава зернова арабіка", Price: "289.00", Quantity: 1, Total: "289.00"},
			},
			PaymentKind:   "cashless",
			PaymentAmount: "289.00",
			TotalAmount:   "289.00",
			RestAmount:    "0.00",
		},
		{
			Items: []seedItem{
				{Name: "Сир твердий", Price: "215.00", Quantity: 1, Total: "215.00"},
				{Name: "Масло вершкове", Price: "98.70", Quantity: 1, Total: "98.70"},
				{Name: "Яйця курячі", Price: "54.00", Quantity: 2, Total: "108.00"},
			},
			PaymentKind:   "cash",
			PaymentAmount: "450.00",
			TotalAmount:   "421.70",
			RestAmount:    "28.30",
		},
	}

	for i, rec := range receipts {
		items, err := json.Marshal(rec.Items)
		if err != nil {
			log.Fatalf("Failed to marshal receipt items: %v", err)
		}
		_, err = db.Exec(`
			INSERT INTO receipts (public_id, user_id, items, payment_kind, payment_amount, total_amount, rest_amount)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6);
		`, userID, items, rec.PaymentKind, rec.PaymentAmount, rec.TotalAmount, rec.RestAmount)
		if err != nil {
			log.Fatalf("Failed to seed receipt %d: %v", i+1, err)
		}
	}
	log.Printf("Seeded %d receipts", len(receipts))
}
