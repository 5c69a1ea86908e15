package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"libra-backend/internal/platform/db"
)

// スキーマ定義。ロジックはすべてアプリ側に持たせるので
// ストアドプロシージャは作らない。
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('admin', 'member') NOT NULL DEFAULT 'member',
		created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS authors (
		author_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		category_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		book_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		isbn VARCHAR(20) UNIQUE,
		author_id BIGINT,
		category_id BIGINT,
		total_copies INT NOT NULL DEFAULT 1,
		available_copies INT NOT NULL DEFAULT 1,
		publication_year INT,
		image_url VARCHAR(255),
		FOREIGN KEY (author_id) REFERENCES authors(author_id) ON DELETE SET NULL,
		FOREIGN KEY (category_id) REFERENCES categories(category_id) ON DELETE SET NULL,
		CHECK (available_copies >= 0 AND available_copies <= total_copies)
	)`,
	// 貸出履歴は監査用に残すので FK は RESTRICT（貸出が参照する行は消せない）
	`CREATE TABLE IF NOT EXISTS loans (
		loan_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		loan_ulid CHAR(26) NOT NULL UNIQUE,
		user_id BIGINT NOT NULL,
		book_id BIGINT NOT NULL,
		borrow_date DATE NOT NULL,
		due_date DATE NOT NULL,
		return_date DATE,
		fine_amount DECIMAL(10, 2) NOT NULL DEFAULT 0.00,
		status ENUM('issued', 'returned') NOT NULL DEFAULT 'issued',
		FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE RESTRICT,
		FOREIGN KEY (book_id) REFERENCES books(book_id) ON DELETE RESTRICT,
		INDEX idx_loans_user (user_id, status),
		INDEX idx_loans_book (book_id, status)
	)`,
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	seed := flag.Bool("seed", false, "seed books from Open Library after creating the schema")
	seedTarget := flag.Int("seed-target", 200, "number of books to seed")
	flag.Parse()

	cfg, err := db.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	// まずDBなしで接続してデータベースを作る
	serverDSN := fmt.Sprintf("%s:%s@tcp(%s:%d)/?parseTime=true&timeout=3s",
		cfg.DB.Username, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port)
	server, err := sql.Open("mysql", serverDSN)
	if err != nil {
		log.Fatal(err)
	}
	if _, err := server.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+cfg.DB.DBName); err != nil {
		log.Fatal(err)
	}
	server.Close()
	log.Printf("[INFO] database %s ready", cfg.DB.DBName)

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	for _, ddl := range schemaDDL {
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			log.Fatal(err)
		}
	}
	log.Println("[INFO] schema initialized")

	if *seed {
		if err := seedBooks(ctx, conn, *seedTarget); err != nil {
			log.Fatal(err)
		}
	}
}

// ---- seeding (Open Library) ----

var subjects = []string{"fiction", "science", "history", "art", "business", "biography", "romance", "mystery"}

type work struct {
	Title   string `json:"title"`
	CoverID int64  `json:"cover_id"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

type subjectResponse struct {
	Works []work `json:"works"`
}

func seedBooks(ctx context.Context, conn *sql.DB, target int) error {
	client := &http.Client{Timeout: 15 * time.Second}
	count := 0

	for _, subject := range subjects {
		if count >= target {
			break
		}
		log.Printf("[INFO] fetching %s books...", subject)

		works, err := fetchSubject(ctx, client, subject)
		if err != nil {
			// 1ジャンル失敗しても他で続行
			log.Printf("[WARN] fetch %s failed: %v", subject, err)
			continue
		}

		for _, w := range works {
			if count >= target {
				break
			}
			if w.Title == "" {
				continue
			}

			authorName := "Unknown Author"
			if len(w.Authors) > 0 && w.Authors[0].Name != "" {
				authorName = w.Authors[0].Name
			}
			authorID, err := upsertAuthor(ctx, conn, authorName)
			if err != nil {
				return err
			}

			imageURL := "https://via.placeholder.com/300x450?text=No+Cover"
			if w.CoverID != 0 {
				imageURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", w.CoverID)
			}

			// デモ用にISBN・年・冊数はランダム生成（元データに無いため）
			copies := rand.Intn(10) + 1
			year := rand.Intn(2023-1900) + 1900
			isbn := fmt.Sprintf("%013d", rand.Int63n(9_000_000_000_000)+1_000_000_000_000)

			_, err = conn.ExecContext(ctx, `
				INSERT IGNORE INTO books
				(title, isbn, author_id, total_copies, available_copies, publication_year, image_url)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				w.Title, isbn, authorID, copies, copies, year, imageURL,
			)
			if err != nil {
				return err
			}
			count++
		}
	}

	log.Printf("[INFO] seeded %d books", count)
	return nil
}

func fetchSubject(ctx context.Context, client *http.Client, subject string) ([]work, error) {
	url := fmt.Sprintf("https://openlibrary.org/subjects/%s.json?limit=80", subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var sr subjectResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}
	return sr.Works, nil
}

func upsertAuthor(ctx context.Context, conn *sql.DB, name string) (int64, error) {
	var id int64
	err := conn.QueryRowContext(ctx, `SELECT author_id FROM authors WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := conn.ExecContext(ctx, `INSERT INTO authors (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
