// clear-shelf removes every shelf entry of one or more shoppers so their
// shelves can be recreated with POST /internal/shopper-products.
//
// Usage: go run ./scripts/clear-shelf [-dry-run=false] <shopper-id>...
//
// Database connection: same config.yaml / PG* environment variables as shelfd.
//
// Flags:
//
//	-dry-run   Show what would be deleted without actually deleting (default: true)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/shopper-shelf/pkg/config"
	"github.com/ekaya-inc/shopper-shelf/pkg/logging"
)

func main() {
	dryRun := flag.Bool("dry-run", true, "Show what would be deleted without actually deleting")
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	shopperIDs := flag.Args()
	if len(shopperIDs) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-dry-run=false] <shopper-id>...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		fmt.Fprintf(os.Stderr, "  -dry-run  Show what would be deleted without deleting (default: true)\n")
		os.Exit(1)
	}

	cfg, err := config.Load("script", *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	connURL := cfg.Database.ConnectionURL()
	conn, err := pgx.Connect(ctx, connURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %s\n",
			logging.SanitizeConnectionString(connURL), logging.SanitizeError(err))
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to actually delete shelf entries")
		fmt.Println()
	}

	total := 0
	for _, shopperID := range shopperIDs {
		count, err := clearShelf(ctx, conn, shopperID, *dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing shelf %q: %v\n", shopperID, err)
			os.Exit(1)
		}
		total += count
	}

	if *dryRun {
		fmt.Printf("\nTotal entries that would be deleted: %d\n", total)
	} else {
		fmt.Printf("\nTotal entries deleted: %d\n", total)
	}
}

// clearShelf deletes the shelf of shopperID. With dryRun it only lists the entries.
func clearShelf(ctx context.Context, conn *pgx.Conn, shopperID string, dryRun bool) (int, error) {
	if dryRun {
		rows, err := conn.Query(ctx, `
			SELECT product_id, relevancy_score::text
			FROM shopper_product
			WHERE shopper_id = $1
			ORDER BY relevancy_score DESC, id ASC
		`, shopperID)
		if err != nil {
			return 0, fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		var count int
		for rows.Next() {
			var productID, score string
			if err := rows.Scan(&productID, &score); err != nil {
				return 0, fmt.Errorf("scan failed: %w", err)
			}
			count++
			fmt.Printf("  [%s] %s (score %s)\n", shopperID, productID, score)
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("rows iteration failed: %w", err)
		}

		if count == 0 {
			fmt.Printf("  [%s] No shelf entries\n", shopperID)
		}
		return count, nil
	}

	result, err := conn.Exec(ctx, `DELETE FROM shopper_product WHERE shopper_id = $1`, shopperID)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	count := int(result.RowsAffected())
	fmt.Printf("Deleted %d entries for shopper %s\n", count, shopperID)
	return count, nil
}
