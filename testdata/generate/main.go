package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/domain"
	"github.com/guatepass/tolling/internal/fare"
	"github.com/guatepass/tolling/internal/ingestion"
)

var (
	firstNames = []string{"Ana", "Luis", "María", "José", "Carmen", "Pedro", "Lucía", "Jorge", "Sofía", "Diego"}
	lastNames  = []string{"García", "López", "Pérez", "Morales", "Hernández", "Castillo", "Ramírez", "Méndez"}
)

type user struct {
	plate string
	tagID string
}

func main() {
	var (
		numUsers     = flag.Int("users", 40, "number of users to generate")
		numCrossings = flag.Int("crossings", 200, "number of crossings to generate")
		seed         = flag.Int64("seed", 42, "random seed for deterministic generation")
		outputDir    = flag.String("output-dir", findTestdataDir(), "directory to write clientes.csv and crossings.json")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	users := generateUsers(rng, *numUsers, filepath.Join(*outputDir, "clientes.csv"))
	fmt.Printf("Generated %d users -> clientes.csv\n", len(users))

	n := generateCrossings(rng, users, *numCrossings, filepath.Join(*outputDir, "crossings.json"))
	fmt.Printf("Generated %d crossings -> crossings.json\n", n)

	fmt.Println("Test data generation complete.")
}

// generateUsers writes the import file. Roughly 40% carry a tag, 35% are
// registered without one and the rest have no digital account.
func generateUsers(rng *rand.Rand, count int, path string) []user {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write(ingestion.UsersCSVColumns)

	users := make([]user, 0, count)
	for i := 1; i <= count; i++ {
		plate := fmt.Sprintf("P-%03d%s", i, randomLetters(rng, 3))
		name := firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))]

		u := user{plate: plate}
		var email, phone, userType, hasTag, tagID string
		hasTag = "false"

		roll := rng.Float64()
		switch {
		case roll < 0.40:
			userType = string(domain.UserRegistered)
			u.tagID = fmt.Sprintf("TAG-%04d", i)
			hasTag, tagID = "true", u.tagID
			email = fmt.Sprintf("user%03d@email.com", i)
		case roll < 0.75:
			userType = string(domain.UserRegistered)
			email = fmt.Sprintf("user%03d@email.com", i)
		default:
			userType = string(domain.UserUnregistered)
		}
		if rng.Float64() < 0.6 {
			phone = fmt.Sprintf("+502 5%03d-%04d", rng.Intn(1000), rng.Intn(10000))
		}

		// Balances between 0 and 150 GTQ so that some debits are refused.
		balance := decimal.NewFromInt(int64(rng.Intn(15001))).Shift(-2)

		w.Write([]string{plate, name, email, phone, userType, hasTag, tagID, balance.StringFixed(2)})
		users = append(users, u)
	}
	return users
}

// generateCrossings writes webhook bodies. One in ten crossings is a vehicle
// missing from the directory, and 5% of tagged crossings are sent twice to
// exercise idempotent settlement.
func generateCrossings(rng *rand.Rand, users []user, count int, path string) int {
	tolls := tollPoints()
	start := time.Date(2025, 11, 1, 6, 0, 0, 0, time.FixedZone("CST", -6*3600))

	var hooks []ingestion.TollWebhook
	for i := 0; i < count; i++ {
		ts := start.Add(time.Duration(rng.Intn(14*24*60)) * time.Minute).Format(time.RFC3339)
		hook := ingestion.TollWebhook{
			PeajeID:   tolls[rng.Intn(len(tolls))],
			Timestamp: ts,
		}

		if rng.Float64() < 0.10 || len(users) == 0 {
			hook.Placa = fmt.Sprintf("P-%03d%s", 900+rng.Intn(100), randomLetters(rng, 3))
		} else {
			u := users[rng.Intn(len(users))]
			hook.Placa = u.plate
			if u.tagID != "" && rng.Float64() < 0.9 {
				tag := u.tagID
				hook.TagID = &tag
			}
		}

		hooks = append(hooks, hook)
		if hook.TagID != nil && rng.Float64() < 0.05 {
			hooks = append(hooks, hook)
		}
	}

	writeJSONFile(path, hooks)
	return len(hooks)
}

func tollPoints() []string {
	var ids []string
	for id := range fare.DefaultRates() {
		if id != "default" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	// An unlisted toll point priced at the default rate.
	return append(ids, "PEAJE_ZONA10")
}

func randomLetters(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('A' + rng.Intn(26))
	}
	return string(b)
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	for _, c := range []string{"testdata", "./testdata"} {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
