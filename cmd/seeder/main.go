package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/punchamoorthee/storehub/internal/config"
	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/ledger"
	"github.com/punchamoorthee/storehub/internal/service"
)

// seedOptions holds the flags of the seed command.
type seedOptions struct {
	Stores        int
	ItemsPerStore int
	Price         string
	Tokens        []string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// storeName, itemName and sellerName fix the naming scheme the benchmark
// expects.
func storeName(i int) domain.StoreID { return domain.StoreID(fmt.Sprintf("store-%03d", i)) }

func itemName(store, item int) domain.ItemID {
	return domain.ItemID(fmt.Sprintf("item-%03d-%03d", store, item))
}

func sellerName(i int) domain.AccountID { return domain.AccountID(fmt.Sprintf("seller-%03d", i)) }

func newRootCommand() *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "storehub-seed",
		Short: "Seed a storehub ledger with demo stores and items",
		Long: `Create demo stores, each owned by its own seller account, and list items
in every store. Storage is selected with the same environment as the API
server (STORAGE_BACKEND, SQLITE_PATH, SNAPSHOT_PATH, DB_SOURCE, OVERSEER_ID).

Re-running is safe: existing stores and items are skipped.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Stores, "stores", 10, "number of stores")
	cmd.Flags().IntVar(&opts.ItemsPerStore, "items-per-store", 100, "items listed in each store")
	cmd.Flags().StringVar(&opts.Price, "price", "100", "price of every item")
	cmd.Flags().StringSliceVar(&opts.Tokens, "token", nil, "payment token to approve (repeatable)")
	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedOptions) error {
	price, err := domain.ParseAmount(opts.Price)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == config.BackendMemory {
		return fmt.Errorf("seeding the memory backend has no lasting effect; set STORAGE_BACKEND")
	}

	ctx := cmd.Context()
	backend, err := cfg.OpenBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	overseer := domain.AccountID(cfg.Overseer)
	svc := service.NewMarketplace(backend, ledger.New(overseer))
	return seed(ctx, svc, overseer, opts, price, cmd.OutOrStdout())
}

// seed approves the tokens and creates the stores and items. Items that are
// already listed are skipped; any other failure stops the run.
func seed(ctx context.Context, svc *service.Marketplace, overseer domain.AccountID, opts *seedOptions, price decimal.Decimal, out io.Writer) error {
	for _, token := range opts.Tokens {
		if err := svc.AddApprovedToken(ctx, overseer, domain.AccountID(token)); err != nil {
			return fmt.Errorf("approve token %s: %w", token, err)
		}
	}

	var listed, skipped int
	for s := 0; s < opts.Stores; s++ {
		seller, store := sellerName(s), storeName(s)
		if err := svc.CreateStore(ctx, seller, store); err != nil {
			return fmt.Errorf("create store %s: %w", store, err)
		}
		for i := 0; i < opts.ItemsPerStore; i++ {
			id := itemName(s, i)
			_, err := svc.AddStoreItem(ctx, seller, domain.NewItem{
				ID:       id,
				StoreID:  store,
				Name:     fmt.Sprintf("Demo item %d of %s", i, store),
				Price:    price,
				ImageRef: fmt.Sprintf("https://img.example/%s.png", id),
			})
			switch {
			case err == nil:
				listed++
			case errors.Is(err, domain.ErrAlreadyExists):
				skipped++
			default:
				return fmt.Errorf("list item %s: %w", id, err)
			}
		}
	}

	fmt.Fprintf(out, "Seeded %d stores: %d items listed, %d already present (price %s)\n",
		opts.Stores, listed, skipped, price)
	return nil
}
