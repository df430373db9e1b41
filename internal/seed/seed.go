package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"gidipos/m/domain"
	"gidipos/m/internal/store"
)

// EnsureDefaults writes first-run settings and a starter inventory when the
// store holds nothing yet. Existing data is never touched.
func EnsureDefaults(st *store.Store) error {
	if inserted, err := st.SeedSettings(domain.DefaultSettings()); err != nil {
		return err
	} else if inserted {
		log.Printf("seeded default settings")
	}
	if inserted, err := st.SeedInventory(StarterInventory()); err != nil {
		return err
	} else if inserted {
		log.Printf("seeded starter inventory")
	}
	return nil
}

// StarterInventory is the demo stock a fresh installation begins with.
func StarterInventory() []domain.Drug {
	return []domain.Drug{
		{
			ID:          uuid.NewString(),
			Name:        "Paracetamol 500mg",
			GenericName: "Acetaminophen",
			BatchNumber: "PCM-2024-001",
			ExpiryDate:  "2025-12-31",
			Quantity:    500,
			Price:       15.00,
			Category:    "Pain Relief",
			Description: "Effective pain reliever and fever reducer.",
		},
		{
			ID:          uuid.NewString(),
			Name:        "Amoxicillin 500mg",
			GenericName: "Amoxicillin",
			BatchNumber: "AMX-2024-055",
			ExpiryDate:  "2024-11-30",
			Quantity:    45,
			Price:       45.50,
			Category:    "Antibiotics",
			Description: "Broad-spectrum antibiotic for bacterial infections.",
		},
		{
			ID:          uuid.NewString(),
			Name:        "Artemether-Lumefantrine",
			GenericName: "Coartem",
			BatchNumber: "MAL-2024-102",
			ExpiryDate:  "2026-06-15",
			Quantity:    120,
			Price:       65.00,
			Category:    "Antimalarial",
			Description: "Standard treatment for uncomplicated malaria.",
		},
		{
			ID:          uuid.NewString(),
			Name:        "Ciprofloxacin 500mg",
			GenericName: "Ciprofloxacin",
			BatchNumber: "CIP-2024-089",
			ExpiryDate:  "2025-08-20",
			Quantity:    200,
			Price:       32.00,
			Category:    "Antibiotics",
			Description: "Antibiotic used to treat a number of bacterial infections.",
		},
		{
			ID:          uuid.NewString(),
			Name:        "Ibuprofen 400mg",
			GenericName: "Ibuprofen",
			BatchNumber: "IBU-2023-999",
			ExpiryDate:  "2024-01-01",
			Quantity:    10,
			Price:       20.00,
			Category:    "Pain Relief",
			Description: "Nonsteroidal anti-inflammatory drug (NSAID).",
		},
	}
}

// ImportCatalog ingests a CSV drug catalog into the inventory, skipping
// names already present. Columns: name, generic name, batch number,
// expiry date (YYYY-MM-DD), quantity, price, category, description.
func ImportCatalog(st *store.Store, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load drug catalog %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read catalog header: %v", err)
		return
	}

	var drugs []domain.Drug
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read catalog row: %v", err)
			continue
		}
		if len(record) < 6 {
			continue
		}
		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}
		quantity, _ := strconv.Atoi(strings.TrimSpace(record[4]))
		price, _ := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
		if quantity < 0 || price < 0 {
			continue
		}
		drug := domain.Drug{
			ID:          uuid.NewString(),
			Name:        name,
			GenericName: strings.TrimSpace(record[1]),
			BatchNumber: strings.TrimSpace(record[2]),
			ExpiryDate:  strings.TrimSpace(record[3]),
			Quantity:    quantity,
			Price:       price,
		}
		if len(record) > 6 {
			drug.Category = strings.TrimSpace(record[6])
		}
		if len(record) > 7 {
			drug.Description = strings.TrimSpace(record[7])
		}
		drugs = append(drugs, drug)
	}

	added, err := st.AddDrugs(drugs)
	if err != nil {
		log.Printf("unable to import drug catalog: %v", err)
		return
	}
	log.Printf("imported %d drugs from catalog", added)
}
