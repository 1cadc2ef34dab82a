//go:build ignore

package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	db, err := sql.Open("sqlite3", "deploy/dogfood/pipeforge.db")
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var total int
	err = db.QueryRow("SELECT count(*) FROM components").Scan(&total)
	if err != nil {
		log.Fatal(err)
	}

	var libraries int
	err = db.QueryRow("SELECT count(*) FROM components WHERE id LIKE 'library-%'").Scan(&libraries)
	if err != nil {
		log.Fatal(err)
	}

	var withURL int
	err = db.QueryRow("SELECT count(*) FROM components WHERE id LIKE 'component-%' AND url != ''").Scan(&withURL)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Total records: %d\n", total)
	fmt.Printf("Library snapshots: %d\n", libraries)
	fmt.Printf("Components: %d (%d fetched by URL)\n", total-libraries, withURL)
}
