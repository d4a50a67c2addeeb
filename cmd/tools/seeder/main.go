package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
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

	seedUsers(db)
	seedCatalog(db)
	seedSegments(db)
	seedDiscounts(db)

	log.Println("Seeding completed successfully!")
}

func seedUsers(db *sql.DB) {
	users := []struct {
		Name  string
		Email string
		Role  string
	}{
		{"Admin Griya", "admin@griya.com", "admin"},
		{"Sales Staff", "sales@griya.com", "sales"},
		{"Budi Santoso", "budi@example.com", "customer"},
		{"Siti Aminah", "siti@example.com", "customer"},
		{"Andi Pratama", "andi@example.com", "customer"},
		{"Dewi Lestari", "dewi@example.com", "customer"},
	}

	fmt.Println("Seeding Users...")
	for _, u := range users {
		_, err := db.Exec(`
			INSERT INTO users (name, email, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (email) DO NOTHING;
		`, u.Name, u.Email, u.Role)
		if err != nil {
			log.Printf("Failed to seed user %s: %v", u.Email, err)
		}
	}
}

func seedCatalog(db *sql.DB) {
	categories := []string{
		"Semen & Beton",
		"Cat & Pelapis",
		"Keramik & Granit",
		"Pipa & Sanitasi",
		"Besi & Baja",
		"Kayu & Triplek",
		"Listrik & Lampu",
		"Perkakas",
	}

	fmt.Println("Seeding Categories...")
	catIDs := make(map[string]string)
	for _, name := range categories {
		var id string
		err := db.QueryRow(`
			INSERT INTO categories (name) VALUES ($1)
			ON CONFLICT DO NOTHING RETURNING id;
		`, name).Scan(&id)
		if err == sql.ErrNoRows {
			err = db.QueryRow("SELECT id FROM categories WHERE name = $1", name).Scan(&id)
		}
		if err != nil {
			log.Printf("Failed to upsert category %s: %v", name, err)
			continue
		}
		catIDs[name] = id
	}

	products := []struct {
		Category string
		Title    string
		Variants []struct {
			Title string
			Price string
			Stock int
		}
	}{
		{
			Category: "Semen & Beton",
			Title:    "Semen Portland",
			Variants: []struct {
				Title string
				Price string
				Stock int
			}{
				{"40 kg", "62000.00", 500},
				{"50 kg", "74500.00", 350},
			},
		},
		{
			Category: "Cat & Pelapis",
			Title:    "Cat Tembok Interior",
			Variants: []struct {
				Title string
				Price string
				Stock int
			}{
				{"2.5 L Putih", "98000.00", 120},
				{"20 L Putih", "640000.00", 40},
			},
		},
		{
			Category: "Keramik & Granit",
			Title:    "Keramik Lantai 40x40",
			Variants: []struct {
				Title string
				Price string
				Stock int
			}{
				{"Dus isi 6 - Cream", "78500.00", 200},
				{"Dus isi 6 - Abu", "81000.00", 175},
			},
		},
		{
			Category: "Pipa & Sanitasi",
			Title:    "Pipa PVC AW",
			Variants: []struct {
				Title string
				Price string
				Stock int
			}{
				{"1/2 inci x 4 m", "28000.00", 600},
				{"1 inci x 4 m", "52000.00", 400},
			},
		},
		{
			Category: "Besi & Baja",
			Title:    "Besi Beton Polos",
			Variants: []struct {
				Title string
				Price string
				Stock int
			}{
				{"8 mm x 12 m", "46500.00", 800},
				{"10 mm x 12 m", "71500.00", 650},
			},
		},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		catID, ok := catIDs[p.Category]
		if !ok {
			continue
		}
		var productID string
		err := db.QueryRow(`
			INSERT INTO products (category_id, title) VALUES ($1, $2)
			RETURNING id;
		`, catID, p.Title).Scan(&productID)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Title, err)
			continue
		}
		for _, v := range p.Variants {
			_, err := db.Exec(`
				INSERT INTO product_variants (product_id, title, price, stock)
				VALUES ($1, $2, $3, $4);
			`, productID, v.Title, v.Price, v.Stock)
			if err != nil {
				log.Printf("Failed to seed variant %s / %s: %v", p.Title, v.Title, err)
			}
		}
	}
}

func seedSegments(db *sql.DB) {
	segments := []string{"material-dasar", "finishing", "proyek-besar"}

	fmt.Println("Seeding Segments...")
	for _, name := range segments {
		_, err := db.Exec(`
			INSERT INTO segments (name) VALUES ($1)
			ON CONFLICT (name) DO NOTHING;
		`, name)
		if err != nil {
			log.Printf("Failed to seed segment %s: %v", name, err)
		}
	}

	// Material categories belong to the material-dasar segment.
	_, err := db.Exec(`
		INSERT INTO category_segments (category_id, segment_id)
		SELECT c.id, s.id
		FROM categories c, segments s
		WHERE c.name IN ('Semen & Beton', 'Besi & Baja', 'Pipa & Sanitasi')
		  AND s.name = 'material-dasar'
		ON CONFLICT DO NOTHING;
	`)
	if err != nil {
		log.Printf("Failed to link category segments: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO category_segments (category_id, segment_id)
		SELECT c.id, s.id
		FROM categories c, segments s
		WHERE c.name IN ('Cat & Pelapis', 'Keramik & Granit')
		  AND s.name = 'finishing'
		ON CONFLICT DO NOTHING;
	`)
	if err != nil {
		log.Printf("Failed to link finishing segments: %v", err)
	}
}

func seedDiscounts(db *sql.DB) {
	fmt.Println("Seeding Discounts...")

	_, err := db.Exec(`
		INSERT INTO discounts (kind, mode, value, coupon_code, expires_at, is_active, creator_role)
		VALUES
			('COUPON', 'PERCENTAGE', 10, 'HEMAT10', now() + interval '90 days', TRUE, 'admin'),
			('COUPON', 'FIXED', 25000, 'POTONG25K', now() + interval '30 days', TRUE, 'admin'),
			('COUPON', 'PERCENTAGE', 5, 'KADALUARSA', now() - interval '1 day', TRUE, 'admin')
		ON CONFLICT DO NOTHING;
	`)
	if err != nil {
		log.Printf("Failed to seed coupons: %v", err)
	}

	// Coupon HEMAT10 only applies to the material-dasar segment.
	_, err = db.Exec(`
		INSERT INTO discount_segments (discount_id, segment_id)
		SELECT d.id, s.id
		FROM discounts d, segments s
		WHERE d.coupon_code = 'HEMAT10' AND s.name = 'material-dasar'
		ON CONFLICT DO NOTHING;
	`)
	if err != nil {
		log.Printf("Failed to scope coupon segments: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO discounts (kind, mode, value, is_active, creator_role)
		SELECT 'MANUAL', 'PERCENTAGE', 7, TRUE, 'sales'
		WHERE NOT EXISTS (SELECT 1 FROM discounts WHERE kind = 'MANUAL');
	`)
	if err != nil {
		log.Printf("Failed to seed manual discount: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO manual_discount_assignments (discount_id, user_id)
		SELECT d.id, u.id
		FROM discounts d, users u
		WHERE d.kind = 'MANUAL' AND u.email = 'budi@example.com'
		ON CONFLICT DO NOTHING;
	`)
	if err != nil {
		log.Printf("Failed to assign manual discount: %v", err)
	}
}
